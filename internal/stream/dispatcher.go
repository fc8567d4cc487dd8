package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nao1215/teamboard/internal/metrics"
	"github.com/nao1215/teamboard/pkg/event"
)

// Outcome はPushの結果。
type Outcome int

const (
	// OutcomeAbsent は配信先のチャネルがなかったことを表す。正常な結果。
	OutcomeAbsent Outcome = iota
	// OutcomeDelivered は書き込みに成功したことを表す。
	OutcomeDelivered
	// OutcomeFailed は書き込みに失敗し、チャネルを登録から外したことを表す。
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAbsent:
		return "absent"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Dispatcher は永続化済みアラームのライブ配信とチャネルの確立を行う。
type Dispatcher struct {
	registry *Registry
	log      zerolog.Logger
	metrics  *metrics.Collector
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(r *Registry, log zerolog.Logger, m *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		registry: r,
		log:      log.With().Str("component", "dispatcher").Logger(),
		metrics:  m,
	}
}

// Registry は内部のRegistryを返す。
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// OpenMessage は接続確立時に送るハンドシェイクのデータ。
func OpenMessage(username string) string {
	return fmt.Sprintf("EventStream Created. [username=%s]", username)
}

// Connect はユーザーのチャネルを開き、ハンドシェイクイベントを書き込む。
// 書き込みに失敗した場合、HandleはERRORED状態で終了して登録から外れ、
// ErrConnectに一致するエラーを返す。
func (d *Dispatcher) Connect(username string, sink Sink) (*Handle, error) {
	h := d.registry.Open(username, sink)
	if err := h.Send(event.NameOpen, OpenMessage(username)); err != nil {
		d.registry.RemoveIf(username, h)
		d.metrics.Connect("failed")
		d.log.Warn().Err(err).Str("username", username).Msg("ハンドシェイクに失敗しました")
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, username, err)
	}

	d.metrics.Connect("ok")
	d.log.Info().Str("username", username).Str("handle", h.ID()).Msg("ストリームを開きました")
	return h, nil
}

// Push はアラームIDをユーザーのチャネルに書き込む。
// チャネルがなければ何もしない。書き込みに失敗した場合はチャネルを登録から外す。
// どちらの場合もエラーは返さず、呼び出し元の処理には影響しない。
func (d *Dispatcher) Push(alarmID, username string) Outcome {
	h, ok := d.registry.Lookup(username)
	if !ok {
		d.metrics.Push(OutcomeAbsent.String(), 0)
		d.log.Debug().
			Str("username", username).
			Str("alarm_id", alarmID).
			Msg("配信先のストリームがないため記録のみ行いました")
		return OutcomeAbsent
	}

	start := time.Now()
	err := h.Send(event.NameAlarm, alarmID)
	elapsed := time.Since(start)
	if err != nil {
		d.registry.RemoveIf(username, h)
		d.metrics.Push(OutcomeFailed.String(), elapsed)

		ev := d.log.Warn()
		if errors.Is(err, ErrClosed) {
			ev = d.log.Debug()
		}
		ev.Err(err).
			Str("username", username).
			Str("alarm_id", alarmID).
			Str("handle", h.ID()).
			Msg("アラームの配信に失敗しました")
		return OutcomeFailed
	}

	d.metrics.Push(OutcomeDelivered.String(), elapsed)
	d.log.Debug().
		Str("username", username).
		Str("alarm_id", alarmID).
		Dur("elapsed", elapsed).
		Msg("アラームを配信しました")
	return OutcomeDelivered
}
