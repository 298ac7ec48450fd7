package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// Options controls logger construction.
type Options struct {
	Level   string    // debug, info, warn, error
	JSON    bool      // JSON lines instead of human-readable text
	Output  io.Writer // defaults to stderr
	LogFile string    // optional file that receives a copy of every record
	Fs      afero.Fs  // where LogFile lives; defaults to the OS file system
}

// New returns an slog logger backed by a charm log handler, and a close
// function for the optional log file.
func New(opts Options) (*slog.Logger, func() error, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	closeFn := func() error { return nil }

	if opts.LogFile != "" {
		fsys := opts.Fs
		if fsys == nil {
			fsys = afero.NewOsFs()
		}
		f, err := fsys.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
		closeFn = f.Close
	}

	formatter := charmlog.TextFormatter
	if opts.JSON {
		formatter = charmlog.JSONFormatter
	}
	handler := charmlog.NewWithOptions(out, charmlog.Options{
		Level:           ParseLevel(opts.Level),
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Formatter:       formatter,
	})
	return slog.New(handler), closeFn, nil
}

// ParseLevel maps a level name to a charm log level. Unknown names map to
// info.
func ParseLevel(level string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
