package bootstrap

import (
	"io"
	"time"

	"github.com/artpar/waterspout/config"
	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. The level is applied globally so a
// config reload can change it for every logger derived from this one.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	SetLevel(cfg.Level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// SetLevel sets the global log level. Unknown levels mean info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
