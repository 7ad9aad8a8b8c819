// Package logging sets up the process wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels. Unknown values are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New builds a logger writing text to stderr and, when jsonOut is not nil, JSON to jsonOut.
func New(stderr io.Writer, jsonOut io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewTextHandler(stderr, opts)}
	if jsonOut != nil {
		handlers = append(handlers, slog.NewJSONHandler(jsonOut, opts))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}

// Setup installs the default logger. The returned function closes the log file, if any.
func Setup(level, file string) (func(), error) {
	var (
		out    io.Writer
		closer = func() {}
	)
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return closer, fmt.Errorf("opening log file: %w", err)
		}
		out = f
		closer = func() { _ = f.Close() }
	}
	slog.SetDefault(New(os.Stderr, out, ParseLevel(level)))
	return closer, nil
}
