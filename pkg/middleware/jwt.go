package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Issuer はこのサービスが発行するトークンのiss。
const Issuer = "teamboard"

// DefaultTokenTTL はGenerateJWTで発行するトークンの有効期間。
const DefaultTokenTTL = 24 * time.Hour

const (
	// ContextKeyUsername は認証済みユーザー名を格納するコンテキストキー。
	ContextKeyUsername = "username"
	contextKeyEmail    = "email"
	// headerKeyUsername はユーザー名をレスポンスに伝播するためのHTTPヘッダーキー。
	headerKeyUsername = "X-Username"
	// queryKeyToken はAuthorizationヘッダーを付けられないEventSource用のクエリパラメータ。
	queryKeyToken = "access_token"
)

// JWTClaims はJWTトークンのクレーム。
type JWTClaims struct {
	jwt.RegisteredClaims
	// Username は認証済みユーザーのユーザー名。アラームの受信者IDとして使う。
	Username string `json:"username"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email,omitempty"`
}

// GenerateJWT はユーザー名から有効期間ttlのJWTトークンを生成する。
// ttlが0以下の場合はDefaultTokenTTLを使う。
func GenerateJWT(secret, username, email string, ttl time.Duration) (string, error) {
	if username == "" {
		return "", fmt.Errorf("ユーザー名が空です")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
		Username: username,
		Email:    email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークンを検証してクレームを返す。署名方式はHS256のみ受け付ける。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Username == "" {
		return nil, fmt.Errorf("トークンにユーザー名が含まれていません")
	}
	return claims, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// トークンはAuthorizationヘッダー、なければaccess_tokenクエリから読む。
// 検証に成功した場合、コンテキストに "username" と "email" を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := bearerToken(c)
		if msg != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set(ContextKeyUsername, claims.Username)
		c.Set(contextKeyEmail, claims.Email)
		c.Header(headerKeyUsername, claims.Username)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if q := c.Query(queryKeyToken); q != "" {
			return q, ""
		}
		return "", "Authorizationヘッダーが必要です"
	}
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || tokenString == "" {
		return "", "Bearer トークン形式が不正です"
	}
	return tokenString, ""
}

// GetUsername はGinコンテキストから認証済みユーザー名を取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUsername(c *gin.Context) string {
	v, _ := c.Get(ContextKeyUsername)
	if name, ok := v.(string); ok {
		return name
	}
	return ""
}
