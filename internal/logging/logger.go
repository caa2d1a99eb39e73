// internal/logging/logger.go
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a new structured logger
func NewLogger(format string, level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Open builds a logger writing to file, or to stderr when file is empty.
// The returned closer releases the log file.
func Open(format, level, file string, maxSizeMB int) (*slog.Logger, io.Closer, error) {
	if file == "" {
		return NewLogger(format, level, os.Stderr), nopCloser{}, nil
	}
	w, err := NewRotatingWriter(file, int64(maxSizeMB)*1024*1024)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(format, level, w), w, nil
}

// WithSession returns a logger with the session id attached
func WithSession(logger *slog.Logger, id string) *slog.Logger {
	return logger.With("session", id)
}

// WithComponent returns a logger tagged with the emitting component
func WithComponent(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
