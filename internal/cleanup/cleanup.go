// Package cleanup はアラームサービスの定期メンテナンスジョブを実行する。
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/nao1215/teamboard/internal/metrics"
)

// LimiterIdleTTL はこの期間使われていない接続リミッタを削除する。
const LimiterIdleTTL = time.Hour

const purgeTimeout = 5 * time.Minute

// Purger は論理削除済みアラームを物理削除する。
type Purger interface {
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

// Evictor は使われていないリミッタを削除する。
type Evictor interface {
	Evict(maxAge time.Duration) int
}

// Config はスケジューラの設定。
type Config struct {
	// Schedule はパージを実行するcron式。
	Schedule string
	// Retention は論理削除からパージまでの猶予。
	Retention time.Duration
}

// Scheduler はcronでメンテナンスジョブを実行する。
type Scheduler struct {
	cron      *cron.Cron
	purger    Purger
	limiter   Evictor
	retention time.Duration
	log       zerolog.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

// New はジョブを登録したSchedulerを返す。limiterはnilでもよい。
func New(cfg Config, purger Purger, limiter Evictor, log zerolog.Logger, m *metrics.Collector) (*Scheduler, error) {
	log = log.With().Str("component", "cleanup").Logger()
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		purger:    purger,
		limiter:   limiter,
		retention: cfg.Retention,
		log:       log,
		metrics:   m,
		now:       time.Now,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.purgeJob); err != nil {
		return nil, fmt.Errorf("パージジョブの登録に失敗 (%q): %w", cfg.Schedule, err)
	}
	if limiter != nil {
		s.cron.Schedule(cron.Every(LimiterIdleTTL), cron.FuncJob(s.evictJob))
	}
	return s, nil
}

// Start はスケジューラを開始する。
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("定期メンテナンスを開始しました")
}

// Stop はスケジューラを止め、実行中のジョブの終了をctxの期限まで待つ。
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("実行中のジョブの終了待ちがタイムアウトしました: %w", ctx.Err())
	}
}

// PurgeOnce は保持期間を過ぎた論理削除済みアラームを1回パージする。
func (s *Scheduler) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.purger.PurgeDeleted(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.metrics.Purged(n)
	s.log.Info().Int64("purged", n).Time("before", cutoff).Msg("削除済みアラームをパージしました")
	return n, nil
}

func (s *Scheduler) purgeJob() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()
	if _, err := s.PurgeOnce(ctx); err != nil {
		s.log.Error().Err(err).Msg("パージに失敗しました")
	}
}

func (s *Scheduler) evictJob() {
	n := s.limiter.Evict(LimiterIdleTTL)
	s.log.Debug().Int("evicted", n).Msg("未使用の接続リミッタを削除しました")
}

// cronLogger はcron.Loggerをzerologに橋渡しする。
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
