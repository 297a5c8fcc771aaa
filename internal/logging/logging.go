// Package logging builds the slog logger used by the CLI.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Options configures New.
type Options struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text" or "json"
	Writer io.Writer
}

// New returns a logger writing to opts.Writer. A nil writer discards.
func New(opts Options) *slog.Logger {
	if opts.Writer == nil {
		return slog.New(slog.DiscardHandler)
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(opts.Writer, handlerOpts)
	default:
		handler = slog.NewTextHandler(opts.Writer, handlerOpts)
	}

	return slog.New(handler).With("app", "gan")
}

// parseLevel maps a string to slog.Level.
func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
