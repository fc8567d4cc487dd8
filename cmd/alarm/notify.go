package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/teamboard/pkg/event"
	"github.com/nao1215/teamboard/pkg/httpclient"
	"github.com/nao1215/teamboard/pkg/middleware"
)

// notifyActor は内部API呼び出しに使うトークンのユーザー名。
const notifyActor = "alarm-cli"

func notifyCmd(opts *rootOptions) *cobra.Command {
	var (
		url    string
		token  string
		req    httpclient.AlarmRequest
		remove int64
	)
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "内部API経由でアラームを作成する",
		Long: `稼働中のサーバーの内部APIを呼び出してアラームを作成します。
--remove-post を指定した場合は、その投稿のアラームをまとめて削除します。

例:
  alarm notify --to alice --kind JOIN --post 1 --actor bob
  alarm notify --remove-post 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			if url == "" {
				url = "http://localhost:" + cfg.Server.Port
			}
			if token == "" {
				token, err = middleware.GenerateJWT(cfg.Auth.JWTSecret, notifyActor, "", 0)
				if err != nil {
					return err
				}
			}
			client := httpclient.New(url, httpclient.WithToken(token))

			if remove > 0 {
				n, err := client.RemovePostAlarms(cmd.Context(), remove)
				if err != nil {
					return fmt.Errorf("アラームの削除に失敗: %w", err)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted=%d\n", n)
				return err
			}

			if req.Recipient == "" {
				return fmt.Errorf("--to を指定してください")
			}
			kind, err := event.ParseKind(req.Kind)
			if err != nil {
				return err
			}
			req.Kind = string(kind)

			id, err := client.CreateAlarm(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("アラームの作成に失敗: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "サーバーのURL（既定: http://localhost:<server.port>）")
	cmd.Flags().StringVar(&token, "token", "", "Bearerトークン（既定: 設定のシークレットで発行）")
	cmd.Flags().StringVar(&req.Recipient, "to", "", "受信者のユーザー名")
	cmd.Flags().StringVar(&req.Kind, "kind", string(event.KindComment), "アラーム種別 (COMMENT, TEAM_COMMENT, JOIN, WAITING)")
	cmd.Flags().Int64Var(&req.PostID, "post", 0, "対象投稿のID")
	cmd.Flags().StringVar(&req.ActorUsername, "actor", "", "イベントを発生させたユーザー名")
	cmd.Flags().Int64Var(&remove, "remove-post", 0, "指定した投稿のアラームをまとめて削除する")
	return cmd
}
