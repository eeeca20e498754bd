// Package hostlog implements the level-filtered log sink described in
// spec.md §6: every world owns one sink, writes are serialized by the
// world's log mutex, and messages below the configured level are
// dropped before they reach the underlying writer.
package hostlog

import (
	"io"
	"log"
	"sync"
)

// Level is the five-value severity taxonomy of spec.md §6. Debug is
// downgraded to Info when the world is built in release mode, per the
// same section.
type Level int

const (
	None Level = iota
	Fatal
	Error
	Warning
	Info
	Debug
)

func (l Level) String() string {
	switch l {
	case None:
		return "none"
	case Fatal:
		return "fatal"
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return "unknown"
	}
}

// Logger serializes writes through a single mutex, matching spec.md
// §5's log mutex rather than relying on the standard library logger's
// own internal lock (a caller holding the world's log mutex and a
// caller going straight through *log.Logger would otherwise interleave
// lines from two independent lock domains).
type Logger struct {
	mu    sync.Mutex
	level Level
	out   *log.Logger
}

// New builds a Logger at the given level, writing lines to w with the
// standard library's date/time/microsecond prefix.
func New(w io.Writer, level Level) *Logger {
	return &Logger{level: level, out: log.New(w, "", log.Ldate|log.Ltime|log.Lmicroseconds)}
}

// Level reports the sink's current filter level.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevel changes the sink's filter level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Log writes msg if level is at or below the sink's configured level.
// In a release build (no debug tag) Debug messages are downgraded to
// Info before filtering, so they surface at Info granularity instead
// of being dropped.
func (l *Logger) Log(level Level, msg string) {
	if releaseMode && level == Debug {
		level = Info
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level == None || level > l.level {
		return
	}
	l.out.Printf("[%s] %s", level, msg)
}

func (l *Logger) Fatalf(format string, args ...interface{})   { l.logf(Fatal, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})   { l.logf(Error, format, args...) }
func (l *Logger) Warningf(format string, args ...interface{}) { l.logf(Warning, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})    { l.logf(Info, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{})   { l.logf(Debug, format, args...) }

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if releaseMode && level == Debug {
		level = Info
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.level == None || level > l.level {
		return
	}
	l.out.Printf("[%s] "+format, append([]interface{}{level}, args...)...)
}
