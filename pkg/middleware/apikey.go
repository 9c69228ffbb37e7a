package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/chat/pkg/httpclient"
)

// HeaderKeyAPIKey はアプリケーション資格情報（APIキー）を渡すHTTPヘッダーキー。
// 送信側の httpclient と同じ値になるよう定数を共有する。
const HeaderKeyAPIKey = httpclient.HeaderKeyAPIKey

// APIKeyAuth はアプリケーション全体で共有するAPIキーを検証するGinミドルウェアを返す。
// Pub/Subへのpublishのようにユーザーではなくサービスが呼び出すAPIで使用する。
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)

	return func(c *gin.Context) {
		got := c.GetHeader(HeaderKeyAPIKey)
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "APIキーが必要です",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "APIキーが無効です",
			})
			return
		}
		c.Next()
	}
}
