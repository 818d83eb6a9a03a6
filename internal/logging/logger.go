// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a colored tint logger in dev and a JSON logger otherwise.
func New(env string, level slog.Level, version string) *slog.Logger {
	return newWithWriter(os.Stdout, env, level, version)
}

func newWithWriter(w io.Writer, env string, level slog.Level, version string) *slog.Logger {
	if env == "" || env == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", "airvita")
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", "airvita",
		"version", version,
		"env", env,
	)
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values are
// info.
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
