package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger is the structured logger every partycam component takes
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var slogLevels = map[LogLevel]slog.Level{
	LogLevelDebug: slog.LevelDebug,
	LogLevelInfo:  slog.LevelInfo,
	LogLevelWarn:  slog.LevelWarn,
	LogLevelError: slog.LevelError,
}

// ParseLevel maps a LogLevel to its slog equivalent; unknown levels mean info
func ParseLevel(logLevel LogLevel) slog.Level {
	if level, ok := slogLevels[logLevel]; ok {
		return level
	}
	return slog.LevelInfo
}

// dailyRotatingWriter appends to <prefix>-YYYY-MM-DD.log, switching files when the local date changes
type dailyRotatingWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	file *os.File
	day  string
}

func newDailyRotatingWriter(dir, prefix string) *dailyRotatingWriter {
	return &dailyRotatingWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *dailyRotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if day := w.now().Format(time.DateOnly); w.file == nil || day != w.day {
		if err := w.openDay(day); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *dailyRotatingWriter) openDay(day string) error {
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.log", w.prefix, day))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	if w.file != nil {
		w.file.Close()
	}
	w.file, w.day = file, day
	return nil
}

func (w *dailyRotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// CreateLogger returns a JSON logger writing to daily files in logDir, tagged
// with the service name. Falls back to stdout when logDir cannot be created.
func CreateLogger(logLevel LogLevel, logDir string, service string) Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(logLevel)}

	var out io.Writer = os.Stdout
	if err := os.MkdirAll(logDir, 0755); err == nil {
		out = newDailyRotatingWriter(logDir, service)
	}

	return slog.New(slog.NewJSONHandler(out, opts)).With("service", service)
}

// CreateConsoleLogger returns a text logger for interactive CLI use
func CreateConsoleLogger(logLevel LogLevel, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(logLevel)}))
}

type nopLogger struct{}

// NopLogger discards everything; components fall back to it when given a nil logger
var NopLogger Logger = nopLogger{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Debug(string, ...any) {}
