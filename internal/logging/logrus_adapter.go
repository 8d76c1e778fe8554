package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter backs the Logger interface with logrus so the rest of
// the codebase stays decoupled from the framework.
type LogrusAdapter struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// NewLogrusAdapter creates a Logger at the given level ("debug",
// "info", "warn", "error") and format ("text" or "json").
func NewLogrusAdapter(level, format string) Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return &LogrusAdapter{
		logger: logger,
		entry:  logrus.NewEntry(logger),
	}
}

// NewLogrusAdapterFromLogger wraps an existing logrus.Logger.
func NewLogrusAdapterFromLogger(logger *logrus.Logger) Logger {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogrusAdapter{
		logger: logger,
		entry:  logrus.NewEntry(logger),
	}
}

// Debug logs a debug-level message with optional fields.
func (l *LogrusAdapter) Debug(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Debug(msg)
}

// Info logs an info-level message with optional fields.
func (l *LogrusAdapter) Info(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Info(msg)
}

// Warn logs a warning-level message with optional fields.
func (l *LogrusAdapter) Warn(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Warn(msg)
}

// Error logs an error-level message with optional fields.
func (l *LogrusAdapter) Error(msg string, fields ...Field) {
	l.entry.WithFields(convertFields(fields)).Error(msg)
}

// WithError returns a new logger with an error field attached.
func (l *LogrusAdapter) WithError(err error) Logger {
	return &LogrusAdapter{logger: l.logger, entry: l.entry.WithError(err)}
}

// WithField returns a new logger with a single field attached.
func (l *LogrusAdapter) WithField(key string, value interface{}) Logger {
	return &LogrusAdapter{logger: l.logger, entry: l.entry.WithField(key, value)}
}

// WithFields returns a new logger with multiple fields attached.
func (l *LogrusAdapter) WithFields(fields ...Field) Logger {
	return &LogrusAdapter{logger: l.logger, entry: l.entry.WithFields(convertFields(fields))}
}

func convertFields(fields []Field) logrus.Fields {
	logrusFields := make(logrus.Fields, len(fields))
	for _, field := range fields {
		logrusFields[field.Key] = field.Value
	}
	return logrusFields
}

// NewNopLogger returns a Logger that discards everything. Useful in
// tests.
func NewNopLogger() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewLogrusAdapterFromLogger(logger)
}
