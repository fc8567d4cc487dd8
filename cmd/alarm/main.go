// アラームサービスのエントリポイント。
//
// 使い方:
//
//	alarm serve                    # HTTPサーバーを起動（サブコマンド省略時も同じ）
//	alarm token alice              # 開発用のJWTを発行
//	alarm notify --to alice --kind JOIN --post 1 --actor bob
//	alarm purge                    # 論理削除済みアラームを1回パージ
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nao1215/teamboard/internal/config"
	"github.com/nao1215/teamboard/pkg/logging"
)

var version = "dev"

func main() {
	// .envが無くてもよい
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "エラー: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions は全サブコマンド共通のフラグ。
type rootOptions struct {
	configPath string
}

func (o *rootOptions) load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stderr).
		With().Str("service", "alarm").Logger()
	return cfg, log, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "alarm",
		Short: "チームボードのライブアラームサービス",
		Long: `alarm はコメントやチーム参加などのアラームを記録し、
ストリームを開いているユーザーへServer-Sent Eventsで配信するサービスです。`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "設定ファイル(YAML)のパス")

	root.AddCommand(serveCmd(opts))
	root.AddCommand(tokenCmd(opts))
	root.AddCommand(notifyCmd(opts))
	root.AddCommand(purgeCmd(opts))
	return root
}
