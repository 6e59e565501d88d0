package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/digitorus/pdfstamp/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.Log{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "session", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "abc", rec["session"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.Log{Level: "debug"}, &buf)
	require.NoError(t, err)

	logger.Debug("rendered", "page", 2)
	assert.Contains(t, buf.String(), "page=2")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.Log{Level: "loud"}, nil)
	assert.Error(t, err)
	_, err = New(config.Log{Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}
