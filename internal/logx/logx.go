package logx

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger. Log output goes to stderr so that report
// output on stdout stays machine-parseable.
type Logger struct {
	logger zerolog.Logger
}

// New creates a logger writing to stderr at the given level. Format "text"
// selects a human-readable console writer; anything else emits JSON lines.
// An unknown level falls back to info.
func New(level, format string) *Logger {
	var output io.Writer = os.Stderr

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	if format == "text" {
		output = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	logger := zerolog.New(output).Level(logLevel).With().Timestamp().Logger()

	return &Logger{logger: logger}
}

// Debug starts a debug-level event for structured fields.
func (l *Logger) Debug() *zerolog.Event { return l.logger.Debug() }

// Info starts an info-level event for structured fields.
func (l *Logger) Info() *zerolog.Event { return l.logger.Info() }

// Warn starts a warn-level event for structured fields.
func (l *Logger) Warn() *zerolog.Event { return l.logger.Warn() }

// Error starts an error-level event for structured fields.
func (l *Logger) Error() *zerolog.Event { return l.logger.Error() }

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// With returns a child logger carrying an additional field.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New("info", "text")
)

// SetDefault installs the process-wide logger. The CLI calls this once after
// config is loaded, before any subsystem runs.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Default returns the process-wide logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Debug starts a debug-level event on the default logger.
func Debug() *zerolog.Event { return Default().Debug() }

// Info starts an info-level event on the default logger.
func Info() *zerolog.Event { return Default().Info() }

// Warn starts a warn-level event on the default logger.
func Warn() *zerolog.Event { return Default().Warn() }

// Error starts an error-level event on the default logger.
func Error() *zerolog.Event { return Default().Error() }

// Debugf logs a formatted debug message on the default logger.
func Debugf(format string, args ...interface{}) { Default().Debugf(format, args...) }

// Infof logs a formatted info message on the default logger.
func Infof(format string, args ...interface{}) { Default().Infof(format, args...) }

// Warnf logs a formatted warning message on the default logger.
func Warnf(format string, args ...interface{}) { Default().Warnf(format, args...) }

// Errorf logs a formatted error message on the default logger.
func Errorf(format string, args ...interface{}) { Default().Errorf(format, args...) }
