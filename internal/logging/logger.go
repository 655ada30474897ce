// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the slog logger used by every command: a console
// or JSON handler on stderr, fanned out to a per-run log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Common attribute keys.
const (
	FieldEventType = "event_type"
	FieldFolder    = "folder"
	FieldFile      = "file"
	FieldError     = "error"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string

	// Console receives human-facing output. Nil selects os.Stderr.
	Console io.Writer

	// Dir, when set, receives a conversion_YYYYMMDD_HHMMSS.log file.
	Dir string

	// Now is the clock used to name the log file.
	Now func() time.Time
}

// Logger is a slog.Logger bound to an optional log file.
type Logger struct {
	*slog.Logger

	path string
	file *os.File
}

// Path returns the log file path, empty when logging to the console only.
func (l *Logger) Path() string { return l.path }

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// New constructs a logger using the provided options.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var consoleHandler slog.Handler
	switch format {
	case "console":
		consoleHandler = newConsoleHandler(console, levelVar)
	case "json":
		consoleHandler = newJSONHandler(console, levelVar)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	l := &Logger{}
	handlers := []slog.Handler{consoleHandler}

	if opts.Dir != "" {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		l.path = filepath.Join(opts.Dir, FileName(now()))
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", l.path, err)
		}
		l.file = f
		// The file keeps full timestamps regardless of the console format.
		fileLevel := new(slog.LevelVar)
		fileLevel.Set(min(level, slog.LevelInfo))
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: fileLevel}))
	}

	l.Logger = slog.New(newFanoutHandler(handlers...))
	return l, nil
}

// FileName returns the log file name for a run started at t.
func FileName(t time.Time) string {
	return "conversion_" + t.Format("20060102_150405") + ".log"
}

// ParseLevel maps a level name to a slog.Level. An empty name is info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log level: unsupported value %q", level)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Error returns an error attribute. A nil error yields an empty attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(FieldError, err.Error())
}

// Event tags a record with its event type.
func Event(name string) slog.Attr {
	return slog.String(FieldEventType, name)
}
