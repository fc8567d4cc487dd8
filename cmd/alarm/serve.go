package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/teamboard/internal/alarm"
	"github.com/nao1215/teamboard/internal/cleanup"
	"github.com/nao1215/teamboard/internal/notification"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "HTTPサーバーを起動する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := opts.load()
	if err != nil {
		return err
	}

	store, err := alarm.Open(ctx, cfg.Database.Path, log)
	if err != nil {
		return fmt.Errorf("アラームストアの初期化に失敗: %w", err)
	}
	defer func() { _ = store.Close() }()

	server := notification.NewServer(cfg, store, log)

	scheduler, err := cleanup.New(
		cleanup.Config{Schedule: cfg.Cleanup.Schedule, Retention: cfg.Cleanup.Retention},
		store, server.Limiter(), log, server.Metrics(),
	)
	if err != nil {
		return err
	}
	scheduler.Start()

	runErr := server.Run(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(stopCtx); err != nil {
		log.Warn().Err(err).Msg("定期メンテナンスの停止に失敗しました")
	}

	if runErr != nil {
		return runErr
	}
	log.Info().Msg("アラームサービスを停止しました")
	return nil
}
