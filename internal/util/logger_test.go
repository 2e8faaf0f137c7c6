package util

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SolarFeed/internal/model"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger_ReleaseWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, model.GlobalConfig{AppEnv: "prod", LogLevel: "info"}, "1.2.0", "bridge")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("forwarded", "status", 200)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "forwarded", rec["msg"])
	assert.Equal(t, "bridge", rec["app"])
	assert.Equal(t, "1.2.0", rec["version"])
	assert.Equal(t, "prod", rec["env"])
	assert.EqualValues(t, 200, rec["status"])
}

func TestNewLogger_DevUsesConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, model.GlobalConfig{AppEnv: "dev", LogLevel: "debug"}, "dev", "replay")
	require.NoError(t, err)

	logger.Debug("published", "index", 3)
	out := buf.String()
	assert.Contains(t, out, "published")
	assert.Contains(t, out, "index")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}

func TestNewLogger_RejectsBadLevel(t *testing.T) {
	_, err := NewLogger(&bytes.Buffer{}, model.GlobalConfig{LogLevel: "chatty"}, "dev", "x")
	assert.Error(t, err)
}
