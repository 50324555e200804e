// Package logger builds the structured logger the daemon and its
// components use. Components receive a *slog.Logger through their
// constructors rather than reaching for a package-level global — only
// cmd/sentineld touches Default, for early bootstrap messages before
// the configured logger exists.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Default is set by Init for use by cmd/sentineld before the daemon's
// own *slog.Logger is threaded through. Nothing under internal/ reads it.
var Default *slog.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// New builds a *slog.Logger writing to stdout and, if logFile is
// non-empty, also appending to that file. level is one of
// "debug"|"info"|"warn"|"error" (default "info").
func New(level, logFile string) (*slog.Logger, error) {
	writers := []io.Writer{os.Stdout}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	})

	return slog.New(handler), nil
}

// Init sets Default from the same options New takes; used only by
// cmd/sentineld before the rest of the daemon is wired up.
func Init(level, logFile string) error {
	l, err := New(level, logFile)
	if err != nil {
		return err
	}
	Default = l
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
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
