package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nao1215/teamboard/internal/alarm"
	"github.com/nao1215/teamboard/internal/metrics"
	"github.com/nao1215/teamboard/internal/stream"
	"github.com/nao1215/teamboard/pkg/event"
)

// AlarmStore はNotifierが使うアラームストアの操作。
type AlarmStore interface {
	Append(ctx context.Context, recipient string, kind event.Kind, args any) (alarm.Record, error)
	SoftDeleteBySubject(ctx context.Context, postID int64) (int64, error)
}

// Pusher は記録済みアラームをライブ配信する。
type Pusher interface {
	Push(alarmID, username string) stream.Outcome
}

// Notifier はコメントやチーム参加などの業務処理から呼ばれる通知窓口。
type Notifier struct {
	store   AlarmStore
	pusher  Pusher
	log     zerolog.Logger
	metrics *metrics.Collector
}

// NewNotifier はNotifierを生成する。
func NewNotifier(store AlarmStore, pusher Pusher, log zerolog.Logger, m *metrics.Collector) *Notifier {
	return &Notifier{
		store:   store,
		pusher:  pusher,
		log:     log.With().Str("component", "notifier").Logger(),
		metrics: m,
	}
}

// Notify はアラームを記録し、受信者がストリームを開いていれば配信する。
// 記録に失敗した場合はエラーを返し、配信は行わない。
// 配信の結果は戻り値に影響しない。
func (n *Notifier) Notify(ctx context.Context, recipient string, kind event.Kind, args any) (alarm.Record, error) {
	rec, err := n.store.Append(ctx, recipient, kind, args)
	if err != nil {
		return alarm.Record{}, fmt.Errorf("アラームの記録に失敗: %w", err)
	}
	n.metrics.Created(string(kind))

	outcome := n.pusher.Push(rec.ID, rec.Recipient)
	n.log.Debug().
		Str("alarm_id", rec.ID).
		Str("recipient", rec.Recipient).
		Str("kind", string(kind)).
		Stringer("outcome", outcome).
		Msg("アラームを通知しました")
	return rec, nil
}

// NotifyMany は複数の受信者に同じアラームを通知する。
// イベントを発生させた本人と重複する受信者は除く。
// 途中で記録に失敗した場合は、それまでに記録したアラームとエラーを返す。
func (n *Notifier) NotifyMany(ctx context.Context, recipients []string, kind event.Kind, args event.PostArgs) ([]alarm.Record, error) {
	seen := make(map[string]struct{}, len(recipients))
	records := make([]alarm.Record, 0, len(recipients))
	for _, r := range recipients {
		if r == "" || r == args.ActorUsername {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}

		rec, err := n.Notify(ctx, r, kind, args)
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// PostRemoved は削除された投稿に紐づくアラームをまとめて論理削除する。
func (n *Notifier) PostRemoved(ctx context.Context, postID int64) (int64, error) {
	deleted, err := n.store.SoftDeleteBySubject(ctx, postID)
	if err != nil {
		return 0, err
	}
	n.log.Info().Int64("post_id", postID).Int64("deleted", deleted).Msg("投稿削除に伴いアラームを削除しました")
	return deleted, nil
}
