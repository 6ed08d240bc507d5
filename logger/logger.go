// Package logger is a thin leveled wrapper around log/slog shared by every
// package of the server.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	level         = new(slog.LevelVar)
	mu            sync.RWMutex
	defaultLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	outputFile    *os.File
)

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		level.Set(slog.LevelDebug)
	case "INFO":
		level.Set(slog.LevelInfo)
	case "WARN":
		level.Set(slog.LevelWarn)
	case "ERROR":
		level.Set(slog.LevelError)
	}
}

// Configure replaces the handler. format is "text" or "json"; output is
// "stdout", "stderr" or a file path opened in append mode.
func Configure(format, output string) error {
	var w io.Writer
	var file *os.File

	switch output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log output %q: %w", output, err)
		}
		w = f
		file = f
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level.Level() == slog.LevelDebug,
	}

	var handler slog.Handler
	switch format {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		if file != nil {
			file.Close()
		}
		return fmt.Errorf("unknown log format %q", format)
	}

	mu.Lock()
	prev := outputFile
	defaultLogger = slog.New(handler)
	outputFile = file
	mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return nil
}

// SetOutput routes all logging to w with a text handler. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defaultLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	mu.Unlock()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// With returns a child logger carrying args on every record.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	current().Error(msg, args...)
}
