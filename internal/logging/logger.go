// Package logging provides a logging abstraction that decouples the
// pipeline from the underlying logging framework.
package logging

// Logger is the structured logging interface used throughout the
// application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError returns a new logger with an error field attached.
	WithError(err error) Logger

	// WithField returns a new logger with a single field attached.
	WithField(key string, value interface{}) Logger

	// WithFields returns a new logger with multiple fields attached.
	WithFields(fields ...Field) Logger
}

// Field is a key-value pair attached to a log message.
type Field struct {
	Key   string
	Value interface{}
}
