package alarm

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/nao1215/teamboard/pkg/event"
)

// ErrNotFound は指定されたアラームが存在しない、または論理削除済みであることを表す。
var ErrNotFound = errors.New("アラームが見つかりません")

// Record は1件のアラーム記録。
type Record struct {
	ID            string
	Recipient     string
	Kind          event.Kind
	Args          json.RawMessage
	SubjectPostID int64
	CreatedAt     time.Time
	DeletedAt     *time.Time
}

// PostArgs はペイロードをevent.PostArgsとして読み出す。
func (r Record) PostArgs() (*event.PostArgs, error) {
	return event.DecodeArgs[event.PostArgs](r.Args)
}

// row はalarmsテーブルの1行。
type row struct {
	ID            string       `db:"id"`
	Recipient     string       `db:"recipient"`
	Kind          string       `db:"kind"`
	Args          string       `db:"args"`
	SubjectPostID int64        `db:"subject_post_id"`
	CreatedAt     time.Time    `db:"created_at"`
	DeletedAt     sql.NullTime `db:"deleted_at"`
}

func (r row) record() Record {
	rec := Record{
		ID:            r.ID,
		Recipient:     r.Recipient,
		Kind:          event.Kind(r.Kind),
		Args:          json.RawMessage(r.Args),
		SubjectPostID: r.SubjectPostID,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time.UTC()
		rec.DeletedAt = &t
	}
	return rec
}
