// Package logging builds the structured logger shared by the dispatch API
// and the presence consumer.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a JSON slog logger at the given level. Every component
// logs key-value pairs through this, so accept races, settlements and
// socket traffic can be correlated across both processes by order_id and
// driver_id.
func NewLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFromString(level),
		AddSource: true,
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// levelFromString is forgiving: anything unrecognized falls back to info
// rather than failing boot over a typo in LOG_LEVEL.
func levelFromString(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
