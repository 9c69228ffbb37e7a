package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestRecovery はRecoveryミドルウェアを検証する。
func TestRecovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  gin.HandlerFunc
		wantCode int
	}{
		{
			name:     "文字列のパニックで500が返ること",
			handler:  func(_ *gin.Context) { panic("テスト用パニック") },
			wantCode: http.StatusInternalServerError,
		},
		{
			name:     "errorのパニックで500が返ること",
			handler:  func(_ *gin.Context) { panic(errors.New("テスト用エラー")) },
			wantCode: http.StatusInternalServerError,
		},
		{
			name: "認証済みリクエストのパニックで500が返ること",
			handler: func(c *gin.Context) {
				SetUserID(c, "user1")
				panic("テスト用パニック")
			},
			wantCode: http.StatusInternalServerError,
		},
		{
			name: "レスポンス書き込み後のパニックではステータスが変わらないこと",
			handler: func(c *gin.Context) {
				c.String(http.StatusOK, "partial")
				panic("テスト用パニック")
			},
			wantCode: http.StatusOK,
		},
		{
			name:     "パニックが発生しない場合は正常にレスポンスが返ること",
			handler:  func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) },
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(Recovery())
			router.GET("/test", tt.handler)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("ステータスコード = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusInternalServerError {
				return
			}

			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスボディのパースに失敗: %v", err)
			}
			if body["error"] != "内部サーバーエラーが発生しました" {
				t.Errorf("error = %q, want %q", body["error"], "内部サーバーエラーが発生しました")
			}
		})
	}
}
