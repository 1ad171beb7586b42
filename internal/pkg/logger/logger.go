// Package logger provides process-wide structured logging with PII redaction.
//
// Call sites pass a message followed by alternating key/value pairs:
//
//	logger.Info("broadcast created", "page_id", id, "broadcast_id", bid)
//
// Entries are written as JSON lines through zerolog.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var zerologLevels = map[Level]zerolog.Level{
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
}

// ParseLevel maps a config string onto a Level. Unknown values yield INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger writes structured entries with optional PII redaction.
type Logger struct {
	mu        sync.Mutex
	zl        zerolog.Logger
	redactPII bool
}

var defaultLogger = newLogger(os.Stderr, INFO, true)

func newLogger(w io.Writer, level Level, redact bool) *Logger {
	zl := zerolog.New(w).With().Timestamp().Logger().Level(zerologLevels[level])
	return &Logger{zl: zl, redactPII: redact}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) {
	defaultLogger.mu.Lock()
	defaultLogger.zl = defaultLogger.zl.Level(zerologLevels[l])
	defaultLogger.mu.Unlock()
}

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// SetOutput redirects the default logger, keeping its level.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defaultLogger.zl = defaultLogger.zl.Output(w)
	defaultLogger.mu.Unlock()
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := l.zl.WithLevel(zerologLevels[level])
	if ev == nil {
		return
	}

	// Parse key-value pairs from fields
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case error:
			ev = ev.Str(key, l.redact(key, v.Error()))
		case string:
			ev = ev.Str(key, l.redact(key, v))
		case int:
			ev = ev.Int(key, v)
		case int64:
			ev = ev.Int64(key, v)
		case float64:
			ev = ev.Float64(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		case time.Time:
			ev = ev.Time(key, v)
		default:
			ev = ev.Str(key, l.redact(key, fmt.Sprintf("%v", v)))
		}
	}
	ev.Msg(msg)
}

func (l *Logger) redact(key, val string) string {
	if !l.redactPII {
		return val
	}
	return redactPIIValue(key, val)
}
