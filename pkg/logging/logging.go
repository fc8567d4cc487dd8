package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// consoleTimeFormat はコンソール出力のタイムスタンプ形式。
const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config はロガーの設定。
type Config struct {
	// Level はログレベル（trace, debug, info, warn, error）。
	Level string
	// Format は出力形式（console または json）。
	Format string
}

// New は設定に従ってzerologのロガーを生成する。
// wがnilの場合は標準出力に書き込む。
func New(cfg Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	zerolog.ErrorFieldName = "err"

	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	} else {
		zerolog.TimeFieldFormat = consoleTimeFormat
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}

	return zerolog.New(w).
		Level(ParseLevel(cfg.Level, zerolog.InfoLevel)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel は文字列をログレベルに変換する。解釈できない場合はdefを返す。
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}
