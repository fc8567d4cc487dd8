package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/teamboard/internal/alarm"
	"github.com/nao1215/teamboard/internal/cleanup"
)

func purgeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "保持期間を過ぎた論理削除済みアラームを物理削除する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			store, err := alarm.Open(cmd.Context(), cfg.Database.Path, log)
			if err != nil {
				return fmt.Errorf("アラームストアの初期化に失敗: %w", err)
			}
			defer func() { _ = store.Close() }()

			scheduler, err := cleanup.New(
				cleanup.Config{Schedule: cfg.Cleanup.Schedule, Retention: cfg.Cleanup.Retention},
				store, nil, log, nil,
			)
			if err != nil {
				return err
			}
			n, err := scheduler.PurgeOnce(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "purged=%d\n", n)
			return err
		},
	}
}
