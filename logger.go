package portalAuth

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a structured logger. format is "json" (default) or
// "text"; level is debug, info, warn or error. A nil w writes to stderr.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(level string) slog.Level {
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

// configLogger returns the logger described by c, or a discarding one when
// logging is off.
func configLogger(c LogConfig, w io.Writer) *slog.Logger {
	if loggingOff(c.Level) {
		return discardLogger()
	}
	return NewLogger(c.Level, c.Format, w)
}

func loggingOff(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "off", "none":
		return true
	}
	return false
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
