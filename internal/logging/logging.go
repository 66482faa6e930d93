// Package logging provides the zerolog-based structured logger used by
// the cmd/fuxiquant entrypoint, configured from config.LogConfig's
// level/show_span_timing pair. Grounded on the corpus's zerolog usage
// pattern (ajitpratap0-cryptofunk, sacenox-symb, web3guy0-polybot) since
// the teacher itself carries no logging dependency.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a logger writing human-readable console output when
// pretty is true (typically an interactive terminal), or raw JSON lines
// otherwise (production/file output).
func New(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var writer zerolog.ConsoleWriter
	logger := zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
	if pretty {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
	}
	return logger
}

// Span times a named operation and logs its duration at debug level
// when showTiming is enabled; call the returned func when the
// operation completes.
func Span(logger zerolog.Logger, showTiming bool, name string) func() {
	if !showTiming {
		return func() {}
	}
	start := time.Now()
	return func() {
		logger.Debug().Str("span", name).Dur("elapsed", time.Since(start)).Msg("span complete")
	}
}
