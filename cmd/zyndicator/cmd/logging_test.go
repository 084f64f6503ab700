package cmd

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-graves/the-zyndicator/internal/config"
)

func TestLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel("debug", false))
	assert.Equal(t, slog.LevelWarn, logLevel("warn", false))
	assert.Equal(t, slog.LevelError, logLevel("error", false))
	assert.Equal(t, slog.LevelInfo, logLevel("info", false))
	assert.Equal(t, slog.LevelInfo, logLevel("", false))
	assert.Equal(t, slog.LevelDebug, logLevel("error", true))
}

func TestNewLogger_Stdout(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := newLogger(config.LogConfig{Level: "warn"}, false, &buf)
	require.NoError(t, err)
	assert.Nil(t, closer)

	logger.Info("hidden")
	logger.Warn("Stabilized code", "code", "ABCDEFGHJK")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Stabilized code", rec["msg"])
	assert.Equal(t, "ABCDEFGHJK", rec["code"])
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "zyndicator.log")
	var buf bytes.Buffer
	logger, closer, err := newLogger(config.LogConfig{Level: "info", File: path, MaxSizeMB: 1}, false, &buf)
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Info("Session ready")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Session ready"`)
	assert.Equal(t, buf.String(), string(data))
}
