package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerLevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("hidden")
	assert.Zero(t, buf.Len())

	logger.Info("shown")
	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "shown", entry["msg"])
}

func TestLoggerErrorAlwaysLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	logger.Warn("hidden")
	assert.Zero(t, buf.Len())

	logger.Error("failure")
	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
}

func TestLoggerFormattedMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.Debugf("sweeping %d rows", 3)
	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "sweeping 3 rows", entry["msg"])
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithField("server_id", "srv-1").Info("member joined")

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "srv-1", entry["server_id"])
	assert.Equal(t, "member joined", entry["msg"])
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithFields(map[string]interface{}{
		"channel_id": "ch-1",
		"user_id":    "alice",
	}).Info("overwrite updated")

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "ch-1", entry["channel_id"])
	assert.Equal(t, "alice", entry["user_id"])
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.WithError(errors.New("connection refused")).Error("redis unreachable")

	entry := decodeLogLine(t, &buf)
	assert.Equal(t, "connection refused", entry["error"])
}

func TestLoggerWithErrorNil(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	same := logger.WithError(nil)
	assert.Same(t, logger, same)
}

func TestLoggerFieldsDoNotLeakBetweenDerived(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(InfoLevel, &buf)
	derived := base.WithField("scope", "janitor")

	base.Info("plain")
	entry := decodeLogLine(t, &buf)
	_, has := entry["scope"]
	assert.False(t, has)

	buf.Reset()
	derived.Info("scoped")
	entry = decodeLogLine(t, &buf)
	assert.Equal(t, "janitor", entry["scope"])
}

func TestLoggerNilOutputDefaultsToStdout(t *testing.T) {
	logger := NewLogger(WarnLevel, nil)
	require.NotNil(t, logger)
	assert.Equal(t, WarnLevel, logger.Level())
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}
