package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/teamboard/pkg/event"
)

// Sink はHandleの書き込み先。HTTP層がレスポンスに結び付けた実装を渡す。
type Sink interface {
	WriteEvent(name, data string) error
}

// State はHandleの状態。
type State int

const (
	// StateOpen は書き込み可能な状態。
	StateOpen State = iota
	// StateCompleted はクライアントの切断またはサーバー側の完了で終了した状態。
	StateCompleted
	// StateTimedOut は寿命タイマーで終了した状態。
	StateTimedOut
	// StateErrored は書き込みエラーで終了した状態。
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal は終了状態かどうかを返す。
func (s State) Terminal() bool {
	return s != StateOpen
}

type terminalFunc func(h *Handle, s State)

// Handle は1ユーザーに対する1本の配信チャネル。
// 状態遷移はOPENから終了状態のいずれかへ一度だけ起こる。
type Handle struct {
	id        string
	username  string
	timeout   time.Duration
	createdAt time.Time

	mu        sync.Mutex
	sink      Sink
	state     State
	err       error
	timer     *time.Timer
	callbacks []terminalFunc
	done      chan struct{}
}

func newHandle(username string, timeout time.Duration, sink Sink) *Handle {
	return &Handle{
		id:        uuid.New().String(),
		username:  username,
		timeout:   timeout,
		createdAt: time.Now(),
		sink:      sink,
		done:      make(chan struct{}),
	}
}

// ID はHandleの識別子を返す。
func (h *Handle) ID() string { return h.id }

// Username は受信者のユーザー名を返す。
func (h *Handle) Username() string { return h.username }

// CreatedAt は作成日時を返す。
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// Done は終了状態に遷移したときに閉じられるチャネルを返す。
func (h *Handle) Done() <-chan struct{} { return h.done }

// State は現在の状態を返す。
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err はERRORED終了の原因を返す。それ以外はnil。
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Send はイベントを1件書き込む。
// 終了済みの場合はSinkに触れずにErrClosedを返す。
// 書き込みに失敗した場合はERRORED状態で終了し、原因をラップして返す。
func (h *Handle) Send(name event.Name, data string) error {
	cbs, err := h.send(name, data)
	h.run(cbs)
	return err
}

func (h *Handle) send(name event.Name, data string) (cbs []terminalFunc, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateOpen {
		return nil, ErrClosed
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("イベント %q の書き込み中にpanic: %v", name, p)
			cbs = h.finishLocked(StateErrored, err)
		}
	}()

	if werr := h.sink.WriteEvent(string(name), data); werr != nil {
		err = fmt.Errorf("イベント %q の書き込みに失敗: %w", name, werr)
		return h.finishLocked(StateErrored, err), err
	}
	return nil, nil
}

// Complete はHandleをCOMPLETED状態で終了する。既に終了済みなら何もしない。
func (h *Handle) Complete() bool {
	return h.finish(StateCompleted, nil)
}

// Wait は終了状態への遷移を待つ。ctxが先に終わった場合はCOMPLETEDで終了させる。
func (h *Handle) Wait(ctx context.Context) State {
	select {
	case <-h.done:
	case <-ctx.Done():
		h.Complete()
	}
	return h.State()
}

// arm は寿命タイマーを開始する。
func (h *Handle) arm() {
	if h.timeout <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateOpen {
		return
	}
	h.timer = time.AfterFunc(h.timeout, func() {
		h.finish(StateTimedOut, nil)
	})
}

// onTerminal は終了時に呼ばれるコールバックを登録する。
// 既に終了済みの場合は即座に呼び出す。
func (h *Handle) onTerminal(fn terminalFunc) {
	h.mu.Lock()
	if h.state == StateOpen {
		h.callbacks = append(h.callbacks, fn)
		h.mu.Unlock()
		return
	}
	s := h.state
	h.mu.Unlock()
	fn(h, s)
}

func (h *Handle) finish(s State, err error) bool {
	h.mu.Lock()
	if h.state != StateOpen {
		h.mu.Unlock()
		return false
	}
	cbs := h.finishLocked(s, err)
	h.mu.Unlock()
	h.run(cbs)
	return true
}

// finishLocked はh.muを保持した状態で呼ぶ。コールバックはロックの外で実行すること。
func (h *Handle) finishLocked(s State, err error) []terminalFunc {
	h.state = s
	h.err = err
	if h.timer != nil {
		h.timer.Stop()
	}
	close(h.done)
	cbs := h.callbacks
	h.callbacks = nil
	return cbs
}

func (h *Handle) run(cbs []terminalFunc) {
	if len(cbs) == 0 {
		return
	}
	s := h.State()
	for _, fn := range cbs {
		fn(h, s)
	}
}
