// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dgallion1/docannot/internal/config"
)

// New creates a *slog.Logger writing to stderr and sets it as the default
// logger. Format "json" produces JSON lines, anything else a text handler
// with source locations. Level is debug, info, warn or error; unknown
// levels fall back to info.
func New(cfg config.LogConfig) *slog.Logger {
	logger := NewWriter(os.Stderr, cfg)
	slog.SetDefault(logger)
	return logger
}

// NewWriter is New without touching the default logger.
func NewWriter(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: !strings.EqualFold(cfg.Format, "json"),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
