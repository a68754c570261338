// Package logger builds the structured logger used by the CLI.
package logger

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

// Options controls logger construction.
type Options struct {
	// Out is the log destination. Defaults to os.Stderr.
	Out io.Writer
	// Level is one of: "debug", "info", "warn", "error". Defaults to "warn".
	Level string
	// Format is "auto" (default), "text", "json" or "logfmt".
	// When "auto", TTY → text; non-TTY → logfmt.
	Format string
	// ReportTimestamp adds a timestamp to every line.
	ReportTimestamp bool
}

// New constructs a logger according to Options. Events are snake_case
// messages with key/value fields, e.g. Debug("tag_matched", "tag", "v1.2.3").
func New(opts Options) *log.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	return log.NewWithOptions(out, log.Options{
		Level:           parseLevel(opts.Level),
		Formatter:       chooseFormatter(out, opts.Format),
		ReportTimestamp: opts.ReportTimestamp,
	})
}

func chooseFormatter(w io.Writer, format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	case "text", "pretty":
		return log.TextFormatter
	default:
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return log.TextFormatter
		}
		return log.LogfmtFormatter
	}
}

func parseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.WarnLevel
	}
}

// NewRunID generates a random 12-hex-character run identifier.
func NewRunID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "run-000000"
	}
	return hex.EncodeToString(b[:])
}
