package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCapturedLogger() (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	underlying := logrus.New()
	underlying.SetOutput(buf)
	underlying.SetLevel(logrus.DebugLevel)
	underlying.SetFormatter(&logrus.JSONFormatter{})
	return NewLogrusAdapterFromLogger(underlying), buf
}

func TestLogrusAdapter_Levels(t *testing.T) {
	logger, buf := newCapturedLogger()

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.Contains(t, out, "debug message")
	assert.Contains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestLogrusAdapter_Fields(t *testing.T) {
	logger, buf := newCapturedLogger()

	logger.Info("batch ingested", Field{Key: "rows", Value: 42})
	assert.Contains(t, buf.String(), `"rows":42`)
}

func TestLogrusAdapter_WithField(t *testing.T) {
	logger, buf := newCapturedLogger()

	scoped := logger.WithField("subject_ref", "s1")
	scoped.Info("hello")
	assert.Contains(t, buf.String(), `"subject_ref":"s1"`)

	// The parent logger is unaffected.
	buf.Reset()
	logger.Info("plain")
	assert.NotContains(t, buf.String(), "subject_ref")
}

func TestLogrusAdapter_WithError(t *testing.T) {
	logger, buf := newCapturedLogger()

	logger.WithError(errors.New("boom")).Error("ingest failed")
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestNewLogrusAdapter_InvalidLevelFallsBack(t *testing.T) {
	logger := NewLogrusAdapter("not-a-level", "text")
	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info("still works") })
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Info("discarded")
		logger.WithField("k", "v").Error("discarded")
	})
}
