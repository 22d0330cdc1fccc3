package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WithComponentAndError(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).WithComponent("router").WithError(errors.New("boom"))

	l.Logger.Warn().Str("topic", "sensor/a").Msg("message rejected")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "router", line["component"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "sensor/a", line["topic"])
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "message rejected", line["message"])
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).WithFields(map[string]interface{}{"queue": "datos_sensores", "attempt": 2}).Info("published")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "datos_sensores", line["queue"])
	assert.EqualValues(t, 2, line["attempt"])
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt([]byte("short"), 10))
	assert.Equal(t, "abc...", Excerpt([]byte("abcdef"), 3))
}

func TestLogger_LevelHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.WithError(errors.New("dial tcp: refused")).Error("RabbitMQ connection attempt failed")
	l.Warn("Latest value cache unavailable")
	l.ErrorWithError(errors.New("close"), "Error during cleanup")

	dec := json.NewDecoder(&buf)
	var levels []string
	for dec.More() {
		var line map[string]interface{}
		require.NoError(t, dec.Decode(&line))
		levels = append(levels, line["level"].(string))
	}
	assert.Equal(t, []string{"error", "warn", "error"}, levels)
}
