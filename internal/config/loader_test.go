package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeYAML(t *testing.T, v any) string {
	t.Helper()
	data, err := yaml.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "zyndicator.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_FileOverrides(t *testing.T) {
	path := writeYAML(t, map[string]any{
		"log":   map[string]any{"level": "debug"},
		"scan":  map[string]any{"forward": "candidate", "fps": 12.5},
		"roi":   map[string]any{"offset_x": -25},
		"store": map[string]any{"backend": "redis", "redis": map[string]any{"addr": "cache:6379"}},
	})

	l := NewLoader()
	cfg, err := l.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.GetConfigFileUsed())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "candidate", cfg.Scan.Forward)
	assert.Equal(t, 12.5, cfg.Scan.FPS)
	assert.Equal(t, -25.0, cfg.ROI.OffsetX)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 0.25, cfg.ROI.AspectRatio)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeYAML(t, map[string]any{"server": map[string]any{"port": 4000}})
	t.Setenv("ZYNDICATOR_SERVER_PORT", "5000")
	t.Setenv("ZYNDICATOR_STABILIZER_HISTORY_SIZE", "30")

	cfg, err := NewLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Stabilizer.HistorySize)
}

func TestLoader_Validation(t *testing.T) {
	path := writeYAML(t, map[string]any{"scan": map[string]any{"forward": "sometimes"}})

	_, err := NewLoader().LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	cfg, err := NewLoader().LoadWithFileWithoutValidation(path)
	require.NoError(t, err)
	assert.Equal(t, "sometimes", cfg.Scan.Forward)
}

func TestLoader_MissingAndBrokenFiles(t *testing.T) {
	_, err := NewLoader().LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	broken := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("server: [unterminated"), 0o600))
	_, err = NewLoader().LoadWithFile(broken)
	assert.Error(t, err)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, GenerateDefaultConfigFile(path))

	cfg, err := NewLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	// Absent default file is fine, an explicit missing one is not.
	require.NoError(t, LoadEnvFile(""))
	assert.Error(t, LoadEnvFile(filepath.Join(dir, "missing.env")))

	t.Setenv("ZYNDICATOR_LOG_LEVEL", "warn")
	require.NoError(t, os.WriteFile(DefaultEnvFile,
		[]byte("ZYNDICATOR_LOG_LEVEL=debug\nZYNDICATOR_CLIENT_URL=ws://scanner-host:3000/ws\n"), 0o600))
	// Registers a restore before clearing, so the loaded value is undone too.
	t.Setenv("ZYNDICATOR_CLIENT_URL", "")
	require.NoError(t, os.Unsetenv("ZYNDICATOR_CLIENT_URL"))
	require.NoError(t, LoadEnvFile(""))

	// Existing variables win.
	assert.Equal(t, "warn", os.Getenv("ZYNDICATOR_LOG_LEVEL"))
	assert.Equal(t, "ws://scanner-host:3000/ws", os.Getenv("ZYNDICATOR_CLIENT_URL"))
}

func TestGetConfigSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	paths := GetConfigSearchPaths()
	assert.Equal(t, ".", paths[0])
	assert.Contains(t, paths, filepath.Join(xdg, "zyndicator"))
	assert.Equal(t, "/etc/zyndicator", paths[len(paths)-1])
}
