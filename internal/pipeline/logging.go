package pipeline

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger threaded through every pipeline
// component. pretty selects a human-readable console writer (for
// interactive terminal runs); otherwise output is newline-delimited JSON
// suitable for log aggregation.
func NewLogger(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(lvl).With().Timestamp().Logger()
}
