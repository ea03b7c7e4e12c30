// Package logger provides the zerolog setup shared by every component
// of throttlecore that accepts a logger.
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a console-writer zerolog.Logger at the given level. Pass
// "development" or "debug" for env to get debug-level output; anything
// else defaults to info.
func New(env string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: os.Stderr}
	lvl := zerolog.InfoLevel
	if env == "development" || env == "debug" {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// Noop returns a logger that discards everything, for tests and for
// components constructed without an explicit logger. Every package in
// this module treats the zero value of zerolog.Logger as usable, so
// Noop only exists to make that intent readable at call sites.
func Noop() zerolog.Logger {
	return zerolog.Nop()
}
