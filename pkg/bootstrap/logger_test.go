package bootstrap

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "sync-activities", slog.LevelInfo)

	logger.With("component", "ingest").Info("Appended activity", "name", "Ride")
	logger.Debug("hidden")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[ingest] Appended activity", entry["message"])
	assert.Equal(t, "INFO", entry["severity"])
	assert.Equal(t, "sync-activities", entry["service"])
	assert.Equal(t, "ingest", entry["component"])
	assert.Equal(t, "Ride", entry["name"])
}

func TestComponentFromRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "svc", slog.LevelInfo)

	logger.Warn("Slow call", "component", "garmin")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[garmin] Slow call", entry["message"])
	assert.Equal(t, "WARN", entry["severity"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
