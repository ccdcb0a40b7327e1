// Package logger builds the process-wide structured logger. Every
// arclear package derives its module logger from the root logger
// constructed here.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the log level and output format.
type Config struct {
	Level  string // debug, info, warn or error
	Pretty bool   // human-readable console output instead of JSON
}

// New builds the root logger. Unknown level strings fall back to info
// so a typo in the environment never silences the run.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobalLogger replaces the zerolog package-level logger.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
