package shared

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// InitLogger initializes the logger with a tint handler.
// tint adds colors to the log output which makes it easier to read.
func InitLogger(level string) {
	w := os.Stderr

	slog.SetDefault(slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      ParseLogLevel(level),
			AddSource:  level == "debug",
			TimeFormat: time.Kitchen,
		}),
	))
}
