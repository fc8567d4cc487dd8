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

// newAuthRouter はJWTAuthを適用し、ユーザー名を返すだけのルーターを生成する。
func newAuthRouter() *gin.Engine {
	router := gin.New()
	router.Use(JWTAuth(testSecret))
	router.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"username": GetUsername(c)})
	})
	return router
}

func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	t.Run("ユーザー名を含むトークンを生成できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := GenerateJWT(testSecret, "alice", "alice@example.com", 0)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}

		claims, err := ParseJWT(testSecret, tokenStr)
		if err != nil {
			t.Fatalf("トークンの検証に失敗: %v", err)
		}
		if claims.Username != "alice" {
			t.Errorf("Username = %q, want %q", claims.Username, "alice")
		}
		if claims.Subject != "alice" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "alice")
		}
		if claims.Issuer != Issuer {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, Issuer)
		}
	})

	t.Run("有効期限がttl後であること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		tokenStr, err := GenerateJWT(testSecret, "bob", "", 2*time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
		}
		claims, err := ParseJWT(testSecret, tokenStr)
		if err != nil {
			t.Fatalf("トークンの検証に失敗: %v", err)
		}

		want := before.Add(2 * time.Hour)
		if d := claims.ExpiresAt.Time.Sub(want); d < -time.Minute || d > time.Minute {
			t.Errorf("ExpiresAt = %v, want およそ %v", claims.ExpiresAt.Time, want)
		}
	})

	t.Run("ユーザー名が空ならエラー", func(t *testing.T) {
		t.Parallel()

		if _, err := GenerateJWT(testSecret, "", "", 0); err == nil {
			t.Fatal("エラーが返されるべき")
		}
	})
}

func TestParseJWT(t *testing.T) {
	t.Parallel()

	t.Run("異なるシークレットでは検証に失敗すること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT(testSecret, "alice", "", 0)
		if _, err := ParseJWT("wrong-secret", tokenStr); err == nil {
			t.Fatal("異なるシークレットでの検証がエラーを返すべき")
		}
	})

	t.Run("HS256以外の署名方式は拒否すること", func(t *testing.T) {
		t.Parallel()

		claims := JWTClaims{Username: "alice"}
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
		tokenStr, err := token.SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("署名に失敗: %v", err)
		}
		if _, err := ParseJWT(testSecret, tokenStr); err == nil {
			t.Fatal("HS512のトークンは拒否されるべき")
		}
	})

	t.Run("ユーザー名の無いトークンは拒否すること", func(t *testing.T) {
		t.Parallel()

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{Email: "x@example.com"})
		tokenStr, _ := token.SignedString([]byte(testSecret))
		if _, err := ParseJWT(testSecret, tokenStr); err == nil {
			t.Fatal("ユーザー名の無いトークンは拒否されるべき")
		}
	})

	t.Run("期限切れトークンは拒否すること", func(t *testing.T) {
		t.Parallel()

		claims := JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
			Username: "alice",
		}
		tokenStr, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if _, err := ParseJWT(testSecret, tokenStr); err == nil {
			t.Fatal("期限切れトークンは拒否されるべき")
		}
	})
}

func TestJWTAuth(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでユーザー名が設定されること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT(testSecret, "alice", "", 0)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["username"] != "alice" {
			t.Errorf("username = %q, want %q", body["username"], "alice")
		}
		if got := w.Header().Get("X-Username"); got != "alice" {
			t.Errorf("X-Username = %q, want %q", got, "alice")
		}
	})

	t.Run("access_tokenクエリでも認証できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, _ := GenerateJWT(testSecret, "bob", "", 0)
		req := httptest.NewRequest(http.MethodGet, "/me?access_token="+tokenStr, nil)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	tests := []struct {
		name   string
		header string
	}{
		{name: "Authorizationヘッダーが無い場合401が返ること", header: ""},
		{name: "Bearer接頭辞が無い場合401が返ること", header: "Token abc"},
		{name: "空のBearerトークンで401が返ること", header: "Bearer "},
		{name: "無効なトークンで401が返ること", header: "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newAuthRouter().ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestGetUsername(t *testing.T) {
	t.Parallel()

	t.Run("設定されていない場合は空文字列", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if got := GetUsername(c); got != "" {
			t.Errorf("GetUsername() = %q, want 空文字列", got)
		}
	})

	t.Run("文字列以外の型の場合は空文字列", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set(ContextKeyUsername, 42)
		if got := GetUsername(c); got != "" {
			t.Errorf("GetUsername() = %q, want 空文字列", got)
		}
	})
}
