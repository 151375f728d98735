// Package logger is memtop's debug log. A TUI owns the terminal, so log
// output goes to a file instead; by default everything is discarded and
// Init switches it on.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// L is the shared logger. It discards everything until Init enables it.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	filePrefix = "memtop-"
	fileSuffix = ".log"

	// retention bounds how long daily log files stick around.
	retention = 14 * 24 * time.Hour
)

// Options configures Init.
type Options struct {
	Enabled bool       // leave false to keep discarding
	Dir     string     // log directory, default ~/.memtop/logs
	Level   slog.Level // minimum level, default LevelInfo
}

// Init points L at a dated log file under opts.Dir. Call it from main before
// the first log call. With opts.Enabled false it resets L to discard.
func Init(opts Options) error {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return nil
	}

	dir := opts.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".memtop", "logs")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	prune(dir)

	name := filepath.Join(dir, filePrefix+time.Now().Format("2006-01-02")+fileSuffix)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	level := opts.Level
	if level == 0 {
		level = slog.LevelInfo
	}
	L = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
	return nil
}

// prune removes log files past the retention window. Best effort.
func prune(dir string) {
	cutoff := time.Now().Add(-retention)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		day, err := time.Parse("2006-01-02", strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			os.Remove(filepath.Join(dir, name))
		}
	}
}

// Debug logs at debug level with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at info level with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at warn level with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at error level with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
