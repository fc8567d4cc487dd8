package alarm

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nao1215/teamboard/pkg/event"
	"github.com/nao1215/teamboard/pkg/migration"
)

//go:embed migrations/*.sql
var migrations embed.FS

const columns = "id, recipient, kind, args, subject_post_id, created_at, deleted_at"

// Store はSQLiteに保存されたアラーム記録を操作する。
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option はStoreの挙動を変更する。
type Option func(*Store)

// WithClock は作成日時・削除日時に使う時計を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open はSQLiteデータベースを開き、マイグレーションを適用したStoreを返す。
func Open(ctx context.Context, path string, log zerolog.Logger, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteの書き込みは単一接続に直列化する
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s の実行に失敗: %w", pragma, err)
		}
	}

	if _, err := migration.Run(ctx, db.DB, migrations, "migrations", log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewStore(db, opts...), nil
}

// NewStore はマイグレーション済みのDBからStoreを生成する。
func NewStore(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// DB は内部のデータベース接続を返す。ヘルスチェックに使用する。
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Append は新しいアラームを記録する。
// argsは種別に対応するペイロードで、event.Subjectを実装していれば対象投稿IDも記録する。
func (s *Store) Append(ctx context.Context, recipient string, kind event.Kind, args any) (Record, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return Record{}, fmt.Errorf("受信者が指定されていません")
	}
	raw, err := event.EncodeArgs(kind, args)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:            uuid.New().String(),
		Recipient:     recipient,
		Kind:          kind,
		Args:          raw,
		SubjectPostID: event.SubjectOf(args),
		CreatedAt:     s.now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alarms (id, recipient, kind, args, subject_post_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Recipient, string(rec.Kind), string(rec.Args), rec.SubjectPostID, rec.CreatedAt,
	)
	if err != nil {
		return Record{}, fmt.Errorf("アラームの保存に失敗: %w", err)
	}
	return rec, nil
}

// ListByRecipient は受信者の論理削除されていないアラームを新しい順に返す。
// 該当がない場合は空のスライスを返す。
func (s *Store) ListByRecipient(ctx context.Context, recipient string) ([]Record, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+columns+` FROM alarms
		 WHERE recipient = ? AND deleted_at IS NULL
		 ORDER BY created_at DESC, seq DESC`,
		recipient,
	)
	if err != nil {
		return nil, fmt.Errorf("アラーム一覧の取得に失敗: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

// FindByID はIDでアラームを取得する。存在しない場合はErrNotFoundを返す。
func (s *Store) FindByID(ctx context.Context, id string) (Record, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+columns+` FROM alarms WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return Record{}, fmt.Errorf("アラームの取得に失敗: %w", err)
	}
	if len(rows) == 0 {
		return Record{}, ErrNotFound
	}
	return rows[0].record(), nil
}

// SoftDelete はアラームを論理削除する。
// 存在しない、または既に削除済みの場合はErrNotFoundを返す。
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alarms SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("アラームの削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteBySubject は対象投稿に紐づくアラームをまとめて論理削除し、件数を返す。
func (s *Store) SoftDeleteBySubject(ctx context.Context, postID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alarms SET deleted_at = ? WHERE subject_post_id = ? AND deleted_at IS NULL`,
		s.now().UTC(), postID,
	)
	if err != nil {
		return 0, fmt.Errorf("投稿 %d のアラーム削除に失敗: %w", postID, err)
	}
	return res.RowsAffected()
}

// PurgeDeleted はbefore以前に論理削除されたアラームを物理削除し、件数を返す。
func (s *Store) PurgeDeleted(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alarms WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		before.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("削除済みアラームのパージに失敗: %w", err)
	}
	return res.RowsAffected()
}
