package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Output: &buf})

	l.WithFields(map[string]interface{}{"worker_id": "w-1"}).Error(errors.New("boom"), "publish failed", "event_id", "e-1")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "publish failed", line["message"])
	assert.Equal(t, "w-1", line["worker_id"])
	assert.Equal(t, "e-1", line["event_id"])
	assert.Equal(t, "boom", line["error"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: WarnLevel, Output: &buf})
	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("loud"))
}
