package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

// sseSink はgin.ResponseWriterにServer-Sent Eventsを書き込むstream.Sink。
type sseSink struct {
	ctx     context.Context
	w       gin.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
}

func newSSESink(c *gin.Context, timeout time.Duration) *sseSink {
	return &sseSink{
		ctx:     c.Request.Context(),
		w:       c.Writer,
		rc:      http.NewResponseController(c.Writer),
		timeout: timeout,
	}
}

// WriteEvent はイベントを1件書き込んでフラッシュする。
func (s *sseSink) WriteEvent(name, data string) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("クライアントは切断済みです: %w", err)
	}
	if s.timeout > 0 {
		err := s.rc.SetWriteDeadline(time.Now().Add(s.timeout))
		if err != nil && !errors.Is(err, http.ErrNotSupported) {
			return fmt.Errorf("書き込み期限の設定に失敗: %w", err)
		}
	}
	if err := sse.Encode(s.w, sse.Event{Event: name, Data: data}); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}

// setSSEHeaders はイベントストリーム用のレスポンスヘッダーを設定する。
func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", sse.ContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}
