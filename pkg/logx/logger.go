package logx

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

// Fields is a set of structured key/value pairs attached to a log line.
type Fields map[string]interface{}

// Format selects the output encoding.
type Format int

const (
	FormatConsole Format = iota
	FormatJSON
)

// ParseFormat converts a format name to a Format, defaulting to console.
func ParseFormat(s string) Format {
	if s == "json" {
		return FormatJSON
	}
	return FormatConsole
}

// Logger writes leveled, structured log lines to an io.Writer.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	format Format
	fields Fields
}

// New creates a Logger writing to out.
func New(out io.Writer, level Level, format Format) *Logger {
	return &Logger{out: out, level: level, format: format}
}

// NewFromEnv builds a Logger configured from LOG_LEVEL and LOG_FORMAT.
func NewFromEnv() *Logger {
	return New(os.Stderr, ParseLevel(os.Getenv("LOG_LEVEL")), ParseFormat(os.Getenv("LOG_FORMAT")))
}

// SetLevel changes the minimum emitted level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// WithFields returns an Entry carrying the given fields.
func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{logger: l, fields: fields}
}

// WithField returns an Entry carrying a single field.
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return l.WithFields(Fields{key: value})
}

// WithError returns an Entry carrying the error under the "error" key.
func (l *Logger) WithError(err error) *Entry {
	return l.WithFields(Fields{"error": err.Error()})
}

func (l *Logger) Debug(msg string)                          { l.log(LevelDebug, nil, msg) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.logf(LevelDebug, nil, format, args...) }
func (l *Logger) Info(msg string)                           { l.log(LevelInfo, nil, msg) }
func (l *Logger) Infof(format string, args ...interface{})  { l.logf(LevelInfo, nil, format, args...) }
func (l *Logger) Warn(msg string)                           { l.log(LevelWarn, nil, msg) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.logf(LevelWarn, nil, format, args...) }
func (l *Logger) Error(msg string)                          { l.log(LevelError, nil, msg) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.logf(LevelError, nil, format, args...) }

// Fatal logs at fatal level and exits the process.
func (l *Logger) Fatal(msg string) {
	l.log(LevelFatal, nil, msg)
	os.Exit(1)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logf(LevelFatal, nil, format, args...)
	os.Exit(1)
}

func (l *Logger) logf(level Level, fields Fields, format string, args ...interface{}) {
	l.log(level, fields, fmt.Sprintf(format, args...))
}

func (l *Logger) log(level Level, fields Fields, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.level.Enabled(level) {
		return
	}

	now := time.Now().UTC()
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	switch l.format {
	case FormatJSON:
		rec := make(map[string]interface{}, len(merged)+3)
		for k, v := range merged {
			rec[k] = v
		}
		rec["time"] = now.Format(time.RFC3339Nano)
		rec["level"] = level.String()
		rec["message"] = msg
		b, err := json.Marshal(rec)
		if err != nil {
			fmt.Fprintf(l.out, "%s %s %s logx: marshal failed: %v\n", now.Format(time.RFC3339), level, msg, err)
			return
		}
		l.out.Write(append(b, '\n'))
	default:
		fmt.Fprintf(l.out, "%s [%s] %s%s\n", now.Format("2006-01-02T15:04:05.000Z"), level, msg, formatFields(merged))
	}
}

func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		s += fmt.Sprintf(" %s=%v", k, fields[k])
	}
	return s
}

// Entry is a Logger with pending fields attached.
type Entry struct {
	logger *Logger
	fields Fields
}

// WithFields returns a new Entry with additional fields merged in.
func (e *Entry) WithFields(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{logger: e.logger, fields: merged}
}

// WithField returns a new Entry with one additional field.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.WithFields(Fields{key: value})
}

// WithError returns a new Entry with the error recorded under "error".
func (e *Entry) WithError(err error) *Entry {
	return e.WithFields(Fields{"error": err.Error()})
}

func (e *Entry) Debug(msg string) { e.logger.log(LevelDebug, e.fields, msg) }
func (e *Entry) Debugf(format string, args ...interface{}) {
	e.logger.logf(LevelDebug, e.fields, format, args...)
}
func (e *Entry) Info(msg string) { e.logger.log(LevelInfo, e.fields, msg) }
func (e *Entry) Infof(format string, args ...interface{}) {
	e.logger.logf(LevelInfo, e.fields, format, args...)
}
func (e *Entry) Warn(msg string) { e.logger.log(LevelWarn, e.fields, msg) }
func (e *Entry) Warnf(format string, args ...interface{}) {
	e.logger.logf(LevelWarn, e.fields, format, args...)
}
func (e *Entry) Error(msg string) { e.logger.log(LevelError, e.fields, msg) }
func (e *Entry) Errorf(format string, args ...interface{}) {
	e.logger.logf(LevelError, e.fields, format, args...)
}
func (e *Entry) Fatal(msg string) {
	e.logger.log(LevelFatal, e.fields, msg)
	os.Exit(1)
}
