package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// newJWTRouter はJWTAuthを適用し、解決したユーザーIDを返すテスト用ルーターを生成する。
func newJWTRouter() *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(testSecret))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c)})
	})
	return router
}

// signClaims は任意のクレームと署名方式でトークンを生成する。
func signClaims(t *testing.T, method jwt.SigningMethod, claims JWTClaims, key any) string {
	t.Helper()
	tokenStr, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("トークンの署名に失敗: %v", err)
	}
	return tokenStr
}

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	t.Run("ユーザーIDと有効期限を含むトークンを生成できること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		tokenStr, err := GenerateJWT(testSecret, "user-123", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		if err != nil || !token.Valid {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}

		if claims.UserID != "user-123" {
			t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
		}
		if claims.Subject != "user-123" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "user-123")
		}
		if claims.Issuer != "chat-auth" {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, "chat-auth")
		}

		expectedExpiry := before.Add(time.Hour)
		if diff := claims.ExpiresAt.Sub(expectedExpiry); diff < -time.Minute || diff > time.Minute {
			t.Errorf("ExpiresAt = %v, 期待値 %v との差が大きすぎる", claims.ExpiresAt.Time, expectedExpiry)
		}
	})

	t.Run("異なるシークレットでは検証に失敗すること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-wrong", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		_, err = jwt.ParseWithClaims(tokenStr, &JWTClaims{}, func(_ *jwt.Token) (any, error) {
			return []byte("wrong-secret"), nil
		})
		if err == nil {
			t.Fatal("異なるシークレットでの検証がエラーを返すべき")
		}
	})
}

// TestJWTAuth はJWTAuthミドルウェアを検証する。
func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンで現在のユーザーが解決されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "user-ok", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		newJWTRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["user_id"] != "user-ok" {
			t.Errorf("user_id = %q, want %q", body["user_id"], "user-ok")
		}
		if got := w.Header().Get("X-User-ID"); got != "user-ok" {
			t.Errorf("X-User-ID = %q, want %q", got, "user-ok")
		}
	})

	expired := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    jwtIssuer,
		},
		UserID: "user-expired",
	}
	noUser := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    jwtIssuer,
		},
	}
	valid := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    jwtIssuer,
		},
		UserID: "user-hs512",
	}

	tests := []struct {
		name      string
		header    func(t *testing.T) string
		wantError string
	}{
		{
			name:      "Authorizationヘッダーが無い場合401が返ること",
			header:    func(_ *testing.T) string { return "" },
			wantError: "Authorizationヘッダーが必要です",
		},
		{
			name: "Bearer接頭辞が無い場合401が返ること",
			header: func(t *testing.T) string {
				tokenStr, err := GenerateJWT(testSecret, "user-nobearer", time.Hour)
				if err != nil {
					t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
				}
				return tokenStr
			},
			wantError: "Bearer トークン形式が不正です",
		},
		{
			name:      "無効なトークンで401が返ること",
			header:    func(_ *testing.T) string { return "Bearer invalid-token-string" },
			wantError: "トークンが無効です",
		},
		{
			name: "期限切れトークンで401が返ること",
			header: func(t *testing.T) string {
				return "Bearer " + signClaims(t, jwt.SigningMethodHS256, expired, []byte(testSecret))
			},
			wantError: "トークンが無効です",
		},
		{
			name: "HS256以外の署名方式は401が返ること",
			header: func(t *testing.T) string {
				return "Bearer " + signClaims(t, jwt.SigningMethodHS512, valid, []byte(testSecret))
			},
			wantError: "トークンが無効です",
		},
		{
			name: "ユーザーIDを持たないトークンで401が返ること",
			header: func(t *testing.T) string {
				return "Bearer " + signClaims(t, jwt.SigningMethodHS256, noUser, []byte(testSecret))
			},
			wantError: "トークンにユーザーIDが含まれていません",
		},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if h := tt.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			w := httptest.NewRecorder()
			newJWTRouter().ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスボディのパースに失敗: %v", err)
			}
			if body["error"] != tt.wantError {
				t.Errorf("error = %q, want %q", body["error"], tt.wantError)
			}
		})
	}
}

// TestGetUserID はGetUserID関数を検証する。
func TestGetUserID(t *testing.T) {
	t.Parallel()

	t.Run("SetUserIDで設定したユーザーIDを取得できること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		SetUserID(c, "user-get-id")

		if got := GetUserID(c); got != "user-get-id" {
			t.Errorf("GetUserID() = %q, want %q", got, "user-get-id")
		}
	})

	t.Run("ユーザーIDが設定されていない場合に空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if got := GetUserID(c); got != "" {
			t.Errorf("GetUserID() = %q, want empty string", got)
		}
	})

	t.Run("user_idが文字列以外の型の場合に空文字列が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", 12345)
		if got := GetUserID(c); got != "" {
			t.Errorf("GetUserID() = %q, want empty string", got)
		}
	})
}
