package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	allowed := []string{"http://localhost:3000", "https://chat.example.com"}

	tests := []struct {
		name       string
		method     string
		origin     string
		wantCode   int
		wantOrigin string
	}{
		{
			name:       "許可されたオリジンにCORSヘッダーが設定されること",
			method:     http.MethodGet,
			origin:     "http://localhost:3000",
			wantCode:   http.StatusOK,
			wantOrigin: "http://localhost:3000",
		},
		{
			name:       "許可リストの2番目のオリジンでも設定されること",
			method:     http.MethodGet,
			origin:     "https://chat.example.com",
			wantCode:   http.StatusOK,
			wantOrigin: "https://chat.example.com",
		},
		{
			name:       "許可されていないオリジンにはCORSヘッダーが設定されないこと",
			method:     http.MethodGet,
			origin:     "https://evil.example.com",
			wantCode:   http.StatusOK,
			wantOrigin: "",
		},
		{
			name:       "プリフライトリクエストに204が返ること",
			method:     http.MethodOptions,
			origin:     "http://localhost:3000",
			wantCode:   http.StatusNoContent,
			wantOrigin: "http://localhost:3000",
		},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.Use(CORS(allowed))
			router.GET("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})

			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("ステータスコード = %d, want %d", w.Code, tt.wantCode)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.wantOrigin == "" {
				return
			}
			if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Authorization, Content-Type, X-Api-Key" {
				t.Errorf("Access-Control-Allow-Headers = %q, want %q", got, "Authorization, Content-Type, X-Api-Key")
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, DELETE, OPTIONS" {
				t.Errorf("Access-Control-Allow-Methods = %q, want %q", got, "GET, POST, PUT, DELETE, OPTIONS")
			}
		})
	}
}
