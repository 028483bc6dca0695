package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger at the given level. Handlers and services
// take *slog.Logger so tests can pass slog.New(slog.DiscardHandler).
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
