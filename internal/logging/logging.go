// Package logging configures the zerolog.Logger shared across the engine,
// API, persistence, and simulation packages.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger writing to stderr: human-readable console output by
// default, structured JSON when the LOG_FORMAT environment variable is
// "json". Every entry carries service as a field.
// level follows zerolog's level names ("debug", "info", "warn", "error");
// an unrecognized value falls back to info.
func New(service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	writer := os.Stderr
	var out zerolog.ConsoleWriter
	if os.Getenv("LOG_FORMAT") != "json" {
		out = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
		return zerolog.New(out).
			Level(lvl).
			With().
			Timestamp().
			Str("service", service).
			Logger()
	}

	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}
