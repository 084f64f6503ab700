package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/matthew-graves/the-zyndicator/internal/models"
	"github.com/matthew-graves/the-zyndicator/internal/pipeline"
	"github.com/matthew-graves/the-zyndicator/internal/recognizer"
	"github.com/matthew-graves/the-zyndicator/internal/roi"
	"github.com/matthew-graves/the-zyndicator/internal/server"
	"github.com/matthew-graves/the-zyndicator/internal/stabilizer"
	"github.com/matthew-graves/the-zyndicator/internal/store"
)

func TestDefaultConfig_MatchesPackageDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, roi.DefaultProjectorConfig(), cfg.ToPipelineConfig().Projector)
	assert.Equal(t, stabilizer.DefaultConfig(), cfg.ToPipelineConfig().Stabilizer)
	assert.Equal(t, pipeline.DefaultConfig(), cfg.ToPipelineConfig())
	assert.Equal(t, server.DefaultConfig(), cfg.ToServerConfig())

	st := cfg.ToStoreConfig()
	assert.Equal(t, store.BackendFile, st.Backend)
	assert.Equal(t, "codes.txt", st.Path)
	assert.Equal(t, "zyndicator:codes", st.RedisKey)

	cli := cfg.ToClientConfig()
	assert.Equal(t, "ws://localhost:3000/ws", cli.URL)
	assert.Equal(t, 10*time.Second, cli.ReplyTimeout)
	require.NoError(t, cli.Validate())

	rec := cfg.ToRecognizerConfig()
	assert.Equal(t, recognizer.DefaultConfig(), rec)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level"},
		{"forward mode", func(c *Config) { c.Scan.Forward = "sometimes" }, "invalid forward mode"},
		{"forward none", func(c *Config) { c.Scan.Forward = "none" }, ""},
		{"negative fps", func(c *Config) { c.Scan.FPS = -1 }, "fps"},
		{"aspect ratio", func(c *Config) { c.ROI.AspectRatio = 0 }, "aspect ratio"},
		{"history", func(c *Config) { c.Stabilizer.HistorySize = 0 }, "history size"},
		{"gates", func(c *Config) { c.Stabilizer.PushMinLength = -1 }, "gates"},
		{"backend", func(c *Config) { c.Recognizer.Backend = "paper" }, "recognizer backend"},
		{"tesseract", func(c *Config) { c.Recognizer.Backend = "tesseract" }, ""},
		{"gpu memory", func(c *Config) { c.Recognizer.GPU.MemoryLimit = "lots" }, "GPU memory limit"},
		{"gpu memory ok", func(c *Config) { c.Recognizer.GPU.MemoryLimit = "512MB" }, ""},
		{"client timeout", func(c *Config) { c.Client.ReplyTimeoutSec = 0 }, "client timeouts"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"server timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
		{"message size", func(c *Config) { c.Server.MaxMessageBytes = 0 }, "message size"},
		{"rate limit", func(c *Config) {
			c.Server.RateLimit.Enabled = true
			c.Server.RateLimit.MessagesPerSecond = 0
		}, "rate limit"},
		{"store backend", func(c *Config) { c.Store.Backend = "sqlite" }, "store backend"},
		{"redis store", func(c *Config) { c.Store.Backend = "redis" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"0", 0, false},
		{"512B", 512, false},
		{"2KB", 2048, false},
		{"512mb", 512 << 20, false},
		{"1.5GB", 3 << 29, false},
		{"12", 0, true},
		{"xMB", 0, true},
		{"-1GB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMemoryLimit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.Forward = "both"
	cfg.Scan.FPS = 15
	cfg.ROI.OffsetX = -30
	cfg.Recognizer.Binarize = false
	cfg.Recognizer.Backend = "tesseract"
	cfg.Recognizer.ModelPath = ""
	cfg.Recognizer.GPU = GPUConfig{Enabled: true, Device: 1, MemoryLimit: "1GB"}
	cfg.Locator.TryHarder = true
	cfg.Server.RateLimit.Enabled = true
	cfg.Store.Backend = "redis"
	cfg.Store.Redis.Addr = "cache:6379"
	cfg.Store.Redis.DB = 2

	p := cfg.ToPipelineConfig()
	assert.Equal(t, pipeline.ForwardBoth, p.Forward)
	assert.Equal(t, 15.0, p.FPS)
	assert.Equal(t, -30.0, p.Projector.OffsetX)
	assert.False(t, p.Binarize)

	rec := cfg.ToRecognizerConfig()
	assert.Equal(t, recognizer.BackendTesseract, rec.Backend)
	assert.Equal(t, recognizer.DefaultConfig().ModelPath, rec.ModelPath)
	assert.True(t, rec.GPU.UseGPU)
	assert.Equal(t, 1, rec.GPU.DeviceID)
	assert.Equal(t, uint64(1<<30), rec.GPU.GPUMemLimit)

	assert.True(t, cfg.ToLocatorOptions().TryHarder)
	assert.True(t, cfg.ToServerConfig().RateLimit.Enabled)

	st := cfg.ToStoreConfig()
	assert.Equal(t, store.BackendRedis, st.Backend)
	assert.Equal(t, "cache:6379", st.RedisAddr)
	assert.Equal(t, 2, st.RedisDB)
	require.NoError(t, st.Validate())
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.PublicURL = "http://192.168.1.20:3000"
	cfg.Store.Redis.SeedFromFile = true

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "public_url: http://192.168.1.20:3000")

	var back Config
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, *cfg, back)
}

func TestToRecognizerConfig_ModelsDir(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Recognizer.ModelsDir = dir
	cfg.Recognizer.UseServerModel = true

	rec := cfg.ToRecognizerConfig()
	assert.Equal(t, filepath.Join(dir, models.TypeRecognition, models.RecognitionServer), rec.ModelPath)
	assert.Equal(t, filepath.Join(dir, models.TypeDictionaries, models.DictionaryPPOCRKeysV1), rec.DictPath)

	cfg.Recognizer.ModelPath = "/opt/rec.onnx"
	assert.Equal(t, "/opt/rec.onnx", cfg.ToRecognizerConfig().ModelPath)
}
