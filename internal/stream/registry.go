package stream

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nao1215/teamboard/internal/metrics"
)

// DefaultTimeout はHandleの既定の寿命。
const DefaultTimeout = 60 * time.Minute

// Registry はユーザー名から現在のHandleへの対応を保持する。
// 1ユーザーにつき対応するHandleは高々1つ。
type Registry struct {
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Collector

	mu       sync.RWMutex
	channels map[string]*Handle
	// live は置き換えられたものも含め、終了していない全Handle。CloseAllで使う。
	live map[*Handle]struct{}
}

// NewRegistry はRegistryを生成する。timeoutが0以下の場合はDefaultTimeoutを使う。
// mはnilでもよい。
func NewRegistry(timeout time.Duration, log zerolog.Logger, m *metrics.Collector) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		timeout:  timeout,
		log:      log.With().Str("component", "registry").Logger(),
		metrics:  m,
		channels: make(map[string]*Handle),
		live:     make(map[*Handle]struct{}),
	}
}

// Open はユーザーの新しいHandleを作成し、既存の対応を無条件に置き換える。
// 置き換えられたHandleは閉じない。
func (r *Registry) Open(username string, sink Sink) *Handle {
	h := newHandle(username, r.timeout, sink)
	h.onTerminal(r.release)

	r.mu.Lock()
	prev, replaced := r.channels[username]
	r.channels[username] = h
	r.live[h] = struct{}{}
	r.mu.Unlock()

	r.metrics.StreamOpened()
	if replaced {
		r.log.Debug().
			Str("username", username).
			Str("handle", h.ID()).
			Str("previous", prev.ID()).
			Msg("既存のストリームを置き換えました")
	}

	h.arm()
	return h
}

// release はHandleの終了時に呼ばれる。
func (r *Registry) release(h *Handle, s State) {
	r.mu.Lock()
	delete(r.live, h)
	removed := r.removeLocked(h.Username(), h)
	r.mu.Unlock()

	r.metrics.StreamClosed(s.String())
	r.log.Debug().
		Str("username", h.Username()).
		Str("handle", h.ID()).
		Str("state", s.String()).
		Bool("deregistered", removed).
		Msg("ストリームが終了しました")
}

// Lookup はユーザーの現在のHandleを返す。
func (r *Registry) Lookup(username string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.channels[username]
	return h, ok
}

// Remove はユーザーの対応を無条件に削除する。何度呼んでもよい。
func (r *Registry) Remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, username)
}

// RemoveIf は対応がまだhを指している場合に限り削除する。
func (r *Registry) RemoveIf(username string, h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(username, h)
}

func (r *Registry) removeLocked(username string, h *Handle) bool {
	if cur, ok := r.channels[username]; ok && cur == h {
		delete(r.channels, username)
		return true
	}
	return false
}

// Len は対応を持つユーザー数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// CloseAll は終了していない全HandleをCOMPLETEDで終了させ、その数を返す。
// シャットダウン時に配信中のハンドラを戻すために使う。
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.live))
	for h := range r.live {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	n := 0
	for _, h := range handles {
		if h.Complete() {
			n++
		}
	}
	return n
}
