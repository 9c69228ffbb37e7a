package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// panicResponse はパニック時にクライアントへ返すエラーメッセージ。
const panicResponse = "内部サーバーエラーが発生しました"

// Recovery はハンドラのパニックを500エラーに変換するGinミドルウェアを返す。
// 認証済みのリクエストでは現在のユーザーIDもスタックトレースと一緒に記録する。
// レスポンスの書き込みが始まっている場合はステータスを変更できないため中断のみ行う。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			log.Printf("[PANIC] %s %s user=%q: %v\n%s",
				c.Request.Method, c.Request.URL.Path, GetUserID(c), r, debug.Stack())

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": panicResponse})
		}()
		c.Next()
	}
}
