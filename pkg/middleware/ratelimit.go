package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// UserRateLimiter はユーザー単位のトークンバケットを管理する。
type UserRateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	perMinute  int
	rate       rate.Limit
	burst      int
	now        func() time.Time
	onReject   func(key string)
}

// RateLimitOption はUserRateLimiterの挙動を変更する。
type RateLimitOption func(*UserRateLimiter)

// WithRejectHook は拒否したときに呼ばれる関数を設定する。メトリクスの記録に使う。
func WithRejectHook(fn func(key string)) RateLimitOption {
	return func(l *UserRateLimiter) { l.onReject = fn }
}

// NewUserRateLimiter は1分あたりperMinute回を上限とするリミッタを生成する。
// バーストは上限の1割で、最低1。
func NewUserRateLimiter(perMinute int, opts ...RateLimitOption) *UserRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	l := &UserRateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		perMinute:  perMinute,
		rate:       rate.Limit(float64(perMinute) / 60.0),
		burst:      max(1, perMinute/10),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow はkeyのリクエストを許可するかどうかを返す。
func (l *UserRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	now := l.now()
	l.lastAccess[key] = now
	allowed := limiter.AllowN(now, 1)
	l.mu.Unlock()

	if !allowed && l.onReject != nil {
		l.onReject(key)
	}
	return allowed
}

// Evict はmaxAgeの間使われていないリミッタを削除し、削除数を返す。
func (l *UserRateLimiter) Evict(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-maxAge)
	n := 0
	for key, last := range l.lastAccess {
		if last.Before(cutoff) {
			delete(l.limiters, key)
			delete(l.lastAccess, key)
			n++
		}
	}
	return n
}

// Len は保持しているリミッタの数を返す。
func (l *UserRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// retryAfter は次のトークンが補充されるまでの秒数。
func (l *UserRateLimiter) retryAfter() int {
	return max(1, (60+l.perMinute-1)/l.perMinute)
}

// RateLimitByUser は認証済みユーザー単位でリクエスト数を制限するGinミドルウェアを返す。
// 上限を超えた場合は429を返す。JWTAuthの後に適用すること。
func RateLimitByUser(l *UserRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := GetUsername(c)
		if key == "" {
			key = c.ClientIP()
		}
		if !l.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(l.retryAfter()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "接続回数の上限に達しました。しばらくしてから再試行してください",
			})
			return
		}
		c.Next()
	}
}
