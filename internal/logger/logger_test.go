package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lvl, err := ParseLevel(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, lvl)
		})
	}

	_, err := ParseLevel("chatty")
	assert.True(t, errors.Is(err, ErrUnknownLevel))
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn")
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("bad data", "key", "sgv:0", "reason", "missing timestamp")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "bad data")
	assert.Contains(t, out, "key=sgv:0")
	assert.NotContains(t, out, "\x1b[", "no colors for a buffer")

	_, err = New(&buf, "loud")
	assert.Error(t, err)
}
