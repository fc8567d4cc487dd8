// Package config はアラームサービスの設定を読み込む。
//
// 優先順位は 環境変数 > 設定ファイル(YAML) > 既定値。
// 環境変数は ALARM_ 接頭辞付き（例: ALARM_STREAM_TIMEOUT=30m）のほか、
// 互換性のため PORT, JWT_SECRET, DB_PATH も受け付ける。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix は環境変数の接頭辞。
const EnvPrefix = "ALARM"

// Config はサービス全体の設定。
type Config struct {
	Server   Server
	Auth     Auth
	Database Database
	Stream   Stream
	Cleanup  Cleanup
	Log      Log
	CORS     CORS
}

// Server はHTTPサーバーの設定。
type Server struct {
	Port            string
	ShutdownTimeout time.Duration
}

// Addr はリッスンアドレスを返す。
func (s Server) Addr() string {
	return ":" + s.Port
}

// Auth は認証の設定。
type Auth struct {
	JWTSecret string
}

// Database はアラームストアの設定。
type Database struct {
	Path string
}

// Stream はライブ配信チャネルの設定。
type Stream struct {
	// Timeout はチャネルの寿命。
	Timeout time.Duration
	// WriteTimeout は1回の書き込みの期限。
	WriteTimeout time.Duration
	// ConnectRatePerMinute はユーザーごとの1分あたりの接続上限。
	ConnectRatePerMinute int
}

// Cleanup は定期メンテナンスの設定。
type Cleanup struct {
	// Schedule は論理削除済みアラームのパージを実行するcron式。
	Schedule string
	// Retention は論理削除からパージまでの猶予。
	Retention time.Duration
}

// Log はロガーの設定。
type Log struct {
	Level  string
	Format string
}

// CORS はクロスオリジンの設定。
type CORS struct {
	AllowedOrigins []string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("auth.jwt_secret", "dev-secret-key")
	v.SetDefault("database.path", "/data/alarm.db")
	v.SetDefault("stream.timeout", "60m")
	v.SetDefault("stream.write_timeout", "10s")
	v.SetDefault("stream.connect_rate_per_minute", 30)
	v.SetDefault("cleanup.schedule", "@daily")
	v.SetDefault("cleanup.retention", "720h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

// legacyEnv は接頭辞なしで受け付ける環境変数。
var legacyEnv = map[string]string{
	"server.port":     "PORT",
	"auth.jwt_secret": "JWT_SECRET",
	"database.path":   "DB_PATH",
}

// Load は設定を読み込んで検証する。pathが空の場合は設定ファイルを読まない。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("環境変数 %s のバインドに失敗: %w", legacy, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("設定ファイルが見つかりません: %s", path)
			}
			return nil, fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
		}
	}

	cfg := &Config{
		Server: Server{
			Port:            v.GetString("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Auth:     Auth{JWTSecret: v.GetString("auth.jwt_secret")},
		Database: Database{Path: v.GetString("database.path")},
		Stream: Stream{
			Timeout:              v.GetDuration("stream.timeout"),
			WriteTimeout:         v.GetDuration("stream.write_timeout"),
			ConnectRatePerMinute: v.GetInt("stream.connect_rate_per_minute"),
		},
		Cleanup: Cleanup{
			Schedule:  v.GetString("cleanup.schedule"),
			Retention: v.GetDuration("cleanup.retention"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		CORS: CORS{AllowedOrigins: splitList(v.GetStringSlice("cors.allowed_origins"))},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList は環境変数から渡されたカンマ区切りの値を展開する。
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate は設定値を検証する。
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port が空です"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret が空です"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path が空です"))
	}
	for name, d := range map[string]time.Duration{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"stream.timeout":          c.Stream.Timeout,
		"stream.write_timeout":    c.Stream.WriteTimeout,
		"cleanup.retention":       c.Cleanup.Retention,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s は正の値である必要があります: %s", name, d))
		}
	}
	if c.Stream.ConnectRatePerMinute <= 0 {
		errs = append(errs, fmt.Errorf("stream.connect_rate_per_minute は正の値である必要があります: %d", c.Stream.ConnectRatePerMinute))
	}
	if _, err := cron.ParseStandard(c.Cleanup.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("cleanup.schedule が不正です: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}
	return nil
}
