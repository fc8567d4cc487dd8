package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/teamboard/pkg/middleware"
)

func tokenCmd(opts *rootOptions) *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <username>",
		Short: "開発用のJWTを発行する",
		Long: `設定されたシークレットで署名したJWTを標準出力に書き出します。

例:
  alarm token alice
  curl -N -H "Authorization: Bearer $(alarm token alice)" localhost:8086/api/v1/alarms/subscribe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			token, err := middleware.GenerateJWT(cfg.Auth.JWTSecret, args[0], email, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "トークンに含めるメールアドレス")
	cmd.Flags().DurationVar(&ttl, "ttl", middleware.DefaultTokenTTL, "トークンの有効期間")
	return cmd
}
