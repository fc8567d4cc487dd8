package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestLogger(t *testing.T) {
	t.Parallel()

	t.Run("アクセスログが出力されリクエストIDが付与されること", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		router := gin.New()
		router.Use(Logger(zerolog.New(&buf)))
		router.GET("/items/:id", func(c *gin.Context) {
			c.Set(ContextKeyUsername, "alice")
			c.Status(http.StatusNotFound)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/1", nil))

		if w.Header().Get("X-Request-ID") == "" {
			t.Error("X-Request-IDが付与されていない")
		}

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("ログのパースに失敗: %v (%s)", err, buf.String())
		}
		if entry["level"] != "warn" {
			t.Errorf("level = %v, want warn", entry["level"])
		}
		if entry["path"] != "/items/:id" {
			t.Errorf("path = %v, want /items/:id", entry["path"])
		}
		if entry["status"] != float64(http.StatusNotFound) {
			t.Errorf("status = %v, want %d", entry["status"], http.StatusNotFound)
		}
		if entry["username"] != "alice" {
			t.Errorf("username = %v, want alice", entry["username"])
		}
	})

	t.Run("受け取ったリクエストIDを引き継ぐこと", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Logger(zerolog.Nop()))
		router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("X-Request-ID", "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("X-Request-ID"); got != "req-123" {
			t.Errorf("X-Request-ID = %q, want %q", got, "req-123")
		}
	})
}
