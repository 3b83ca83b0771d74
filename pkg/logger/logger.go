// Package logger provides the structured logging sink threaded through the
// control loop: a console-writer zerolog.Logger with caller info and unix
// timestamps, handed to each subsystem as a value instead of referenced
// through a package global, so the core stays unit-testable off-target.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// New builds a console-writer zerolog.Logger writing to w.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Caller().Logger()
}

// Log is a process-wide console logger writing to stderr, for code that
// has no injected logger. cmd/hallwheelfw builds its own with New.
var Log = New(os.Stderr)

// Nop discards everything; for tests that need a logger value but don't
// care about its output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
