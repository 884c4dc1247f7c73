package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the process-wide slog logger: JSON to stdout with source
// locations, at the level named in config. Unknown level strings fall back to
// info rather than failing startup.
func NewLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}))
}

// Component returns a child logger tagged with the subsystem name, so session
// core, dispatch, and provider logs can be filtered apart.
func Component(base *slog.Logger, name string) *slog.Logger {
	return base.With("component", name)
}

func parseLevel(s string) slog.Leveler {
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
