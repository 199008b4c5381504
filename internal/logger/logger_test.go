package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		log = newLogger()
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel("warn")

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")
	assert.Equal(t, LevelWarn, GetLevel())
}

func TestSetLevelIgnoresUnknown(t *testing.T) {
	capture(t)
	SetLevel("debug")
	SetLevel("verbose")

	assert.Equal(t, LevelDebug, GetLevel())
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]Level{
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"Warning": LevelWarn,
		"error":   LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestJSONFormatWithFields(t *testing.T) {
	buf := capture(t)
	SetFormat("json")

	WithFields(Fields{"session_id": "s-1"}).Info("finalized")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "finalized", entry["msg"])
	assert.Equal(t, "s-1", entry["session_id"])
	assert.Equal(t, "info", entry["level"])
}
