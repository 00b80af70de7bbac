// Package logger builds the service's structured JSON logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is reported as invalid and treated as info.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New returns a JSON logger writing to w (stdout when nil) with RFC3339
// timestamps.
func New(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, ok := ParseLevel(level)

	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	l := slog.New(slog.NewJSONHandler(w, opts))
	if !ok {
		l.Warn("Invalid LOG_LEVEL specified, defaulting to INFO", "configuredLevel", level)
	}
	return l
}
