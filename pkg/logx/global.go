package logx

import "sync"

var (
	globalMu sync.RWMutex
	global   = NewFromEnv()
)

// SetGlobal replaces the package-level logger.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	global = l
	globalMu.Unlock()
}

// Global returns the package-level logger.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetLevel changes the minimum level of the package-level logger.
func SetLevel(level Level) { Global().SetLevel(level) }

func Debug(msg string)                          { Global().Debug(msg) }
func Debugf(format string, args ...interface{}) { Global().Debugf(format, args...) }
func Info(msg string)                           { Global().Info(msg) }
func Infof(format string, args ...interface{})  { Global().Infof(format, args...) }
func Warn(msg string)                           { Global().Warn(msg) }
func Warnf(format string, args ...interface{})  { Global().Warnf(format, args...) }
func Error(msg string)                          { Global().Error(msg) }
func Errorf(format string, args ...interface{}) { Global().Errorf(format, args...) }
func Fatal(msg string)                          { Global().Fatal(msg) }
func Fatalf(format string, args ...interface{}) { Global().Fatalf(format, args...) }

// WithFields returns an Entry on the package-level logger.
func WithFields(fields Fields) *Entry { return Global().WithFields(fields) }

// WithField returns an Entry on the package-level logger.
func WithField(key string, value interface{}) *Entry { return Global().WithField(key, value) }

// WithError returns an Entry on the package-level logger.
func WithError(err error) *Entry { return Global().WithError(err) }
