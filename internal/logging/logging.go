// Package logging builds the operator-facing logger for bank-deploy.
//
// Output goes through zerolog's ConsoleWriter, which colours the level
// column (info green, warn yellow, error red). Colour is switched off on
// request or when the output is not a terminal.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to info.
	Level string

	// NoColor disables ANSI colours.
	NoColor bool
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// New returns a console logger writing to w.
func New(w io.Writer, opts Options) zerolog.Logger {
	noColor := opts.NoColor || !isTerminal(w)
	console := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}
	return zerolog.New(console).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

// isTerminal reports whether w is a terminal. Pipes, files and buffers
// get plain output.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
