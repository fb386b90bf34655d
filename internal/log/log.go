// Package log provides the process-wide structured logger.
package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, charmlog.InfoLevel)
)

func newLogger(w io.Writer, level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}

// ParseLevel converts a level name to a log level. Unknown names map to info.
func ParseLevel(s string) charmlog.Level {
	lvl, err := charmlog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return charmlog.InfoLevel
	}
	return lvl
}

// Init replaces the default logger with one writing to w at the given level.
func Init(level string, w io.Writer) *charmlog.Logger {
	if w == nil {
		w = os.Stderr
	}
	l := newLogger(w, ParseLevel(level))

	mu.Lock()
	logger = l
	mu.Unlock()
	return l
}

// Discard returns a logger that drops everything.
func Discard() *charmlog.Logger {
	return newLogger(io.Discard, charmlog.FatalLevel)
}

// L returns the default logger.
func L() *charmlog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns a child of the default logger carrying the given key/value pairs.
func With(keyvals ...any) *charmlog.Logger {
	return L().With(keyvals...)
}

func Debug(msg any, keyvals ...any) { L().Debug(msg, keyvals...) }
func Info(msg any, keyvals ...any)  { L().Info(msg, keyvals...) }
func Warn(msg any, keyvals ...any)  { L().Warn(msg, keyvals...) }
func Error(msg any, keyvals ...any) { L().Error(msg, keyvals...) }
