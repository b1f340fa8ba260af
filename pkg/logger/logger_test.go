package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWriter("info", "json", &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("query cached", zap.String("id", "abc"))
	require.NoError(t, log.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "query cached", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "abc", line["id"])
	assert.Contains(t, line, "timestamp")
}

func TestInvalidLevel(t *testing.T) {
	_, err := NewWriter("loud", "json", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFileOutput(t *testing.T) {
	path := t.TempDir() + "/gata.log"
	log, err := New("debug", "console", path)
	require.NoError(t, err)
	log.Debug("hello")
	assert.NoError(t, log.Sync())
}
