// Package logger configures the process-wide slog logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// File sink rotation limits.
const (
	MaxFileSizeMB  = 10
	MaxFileBackups = 3
)

// L is the process logger. It is usable before Init.
var L = slog.Default()

var (
	mu   sync.Mutex
	file *lumberjack.Logger
)

// Init replaces L with a logger at level using the text or json format.
// When path is set, lines are also written to that file, which rotates at
// MaxFileSizeMB and keeps MaxFileBackups old copies.
func Init(level, format, path string) error {
	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = os.Stdout
	if path = strings.TrimSpace(path); path != "" {
		if err := checkWritable(path); err != nil {
			return err
		}
		closeFile()
		file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    MaxFileSizeMB,
			MaxBackups: MaxFileBackups,
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	L = New(out, level, format)
	slog.SetDefault(L)
	return nil
}

// New builds a logger writing to w without touching the process logger.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
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

// Close releases the log file opened by Init, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeFile()
}

// checkWritable surfaces a bad log path at start-up; the rotating writer
// only opens the file on first write.
func checkWritable(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	return f.Close()
}

func closeFile() error {
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}
