// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Options controls the installed logger.
type Options struct {
	// Enabled installs a discarding logger when false.
	Enabled bool
	// Level is one of debug, info, warn, error. Empty means debug.
	Level string
	// JSON selects the JSON handler instead of the text handler.
	JSON bool
}

// Configure installs a slog default logger writing to w.
func Configure(w io.Writer, opts Options) error {
	if !opts.Enabled {
		slog.SetDefault(slog.New(slog.DiscardHandler))
		return nil
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, handlerOpts)
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// ParseLevel parses a level name. The empty string means debug, matching -v output.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo:
		return slog.LevelInfo, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}
