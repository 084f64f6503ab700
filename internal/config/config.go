//nolint:lll
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matthew-graves/the-zyndicator/internal/barcode"
	"github.com/matthew-graves/the-zyndicator/internal/client"
	"github.com/matthew-graves/the-zyndicator/internal/models"
	"github.com/matthew-graves/the-zyndicator/internal/onnx"
	"github.com/matthew-graves/the-zyndicator/internal/pipeline"
	"github.com/matthew-graves/the-zyndicator/internal/recognizer"
	"github.com/matthew-graves/the-zyndicator/internal/roi"
	"github.com/matthew-graves/the-zyndicator/internal/server"
	"github.com/matthew-graves/the-zyndicator/internal/stabilizer"
	"github.com/matthew-graves/the-zyndicator/internal/store"
)

// Config represents the complete configuration for zyndicator. It covers both
// the scanning client (scan) and the code server (serve) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	Verbose bool      `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	Log     LogConfig `mapstructure:"log" yaml:"log" json:"log"`

	Scan       ScanConfig       `mapstructure:"scan" yaml:"scan" json:"scan"`
	ROI        ROIConfig        `mapstructure:"roi" yaml:"roi" json:"roi"`
	Stabilizer StabilizerConfig `mapstructure:"stabilizer" yaml:"stabilizer" json:"stabilizer"`
	Recognizer RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	Locator    LocatorConfig    `mapstructure:"locator" yaml:"locator" json:"locator"`
	Client     ClientConfig     `mapstructure:"client" yaml:"client" json:"client"`

	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store" json:"store"`
}

// LogConfig controls structured logging and the optional rotating log file.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level" json:"level"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress" json:"compress"`
}

// ScanConfig contains scanning session settings.
type ScanConfig struct {
	Source           string  `mapstructure:"source" yaml:"source" json:"source"`
	Forward          string  `mapstructure:"forward" yaml:"forward" json:"forward"`
	FPS              float64 `mapstructure:"fps" yaml:"fps" json:"fps"`
	OverlayDir       string  `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	WarmupIterations int     `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
}

// ROIConfig is the label band calibration.
type ROIConfig struct {
	Padding     float64 `mapstructure:"padding" yaml:"padding" json:"padding"`
	OffsetX     float64 `mapstructure:"offset_x" yaml:"offset_x" json:"offset_x"`
	WidthMargin float64 `mapstructure:"width_margin" yaml:"width_margin" json:"width_margin"`
	AspectRatio float64 `mapstructure:"aspect_ratio" yaml:"aspect_ratio" json:"aspect_ratio"`
}

// StabilizerConfig contains the voting window and gates.
type StabilizerConfig struct {
	HistorySize        int `mapstructure:"history_size" yaml:"history_size" json:"history_size"`
	PushMinLength      int `mapstructure:"push_min_length" yaml:"push_min_length" json:"push_min_length"`
	CandidateMinLength int `mapstructure:"candidate_min_length" yaml:"candidate_min_length" json:"candidate_min_length"`
}

// RecognizerConfig contains text recognition settings.
type RecognizerConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`
	// ModelPath and DictPath override the files found below ModelsDir.
	ModelsDir        string    `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	UseServerModel   bool      `mapstructure:"use_server_model" yaml:"use_server_model" json:"use_server_model"`
	ModelPath        string    `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath         string    `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	LibraryPath      string    `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	ImageHeight      int       `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	MaxWidth         int       `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	PadWidthMultiple int       `mapstructure:"pad_width_multiple" yaml:"pad_width_multiple" json:"pad_width_multiple"`
	NumThreads       int       `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	Language         string    `mapstructure:"language" yaml:"language" json:"language"`
	PageMode         int       `mapstructure:"page_mode" yaml:"page_mode" json:"page_mode"`
	Whitelist        string    `mapstructure:"whitelist" yaml:"whitelist" json:"whitelist"`
	Binarize         bool      `mapstructure:"binarize" yaml:"binarize" json:"binarize"`
	GPU              GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// GPUConfig contains GPU acceleration settings for the onnx backend.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}

// LocatorConfig tunes QR detection.
type LocatorConfig struct {
	TryHarder   bool `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	DecodeValue bool `mapstructure:"decode_value" yaml:"decode_value" json:"decode_value"`
}

// ClientConfig points the scanner at a code server.
type ClientConfig struct {
	URL             string `mapstructure:"url" yaml:"url" json:"url"`
	DialTimeoutSec  int    `mapstructure:"dial_timeout_sec" yaml:"dial_timeout_sec" json:"dial_timeout_sec"`
	ReplyTimeoutSec int    `mapstructure:"reply_timeout_sec" yaml:"reply_timeout_sec" json:"reply_timeout_sec"`
}

// ServerConfig contains HTTP server settings (serve command).
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	StaticDir       string          `mapstructure:"static_dir" yaml:"static_dir" json:"static_dir"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxMessageBytes int64           `mapstructure:"max_message_bytes" yaml:"max_message_bytes" json:"max_message_bytes"`
	PublicURL       string          `mapstructure:"public_url" yaml:"public_url" json:"public_url"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains HTTP and websocket rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst" json:"burst"`
	MessagesPerSecond float64 `mapstructure:"messages_per_second" yaml:"messages_per_second" json:"messages_per_second"`
	MessageBurst      int     `mapstructure:"message_burst" yaml:"message_burst" json:"message_burst"`
}

// StoreConfig selects where the server keeps accepted codes.
type StoreConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend" json:"backend"`
	Path    string      `mapstructure:"path" yaml:"path" json:"path"`
	Fsync   bool        `mapstructure:"fsync" yaml:"fsync" json:"fsync"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis" json:"redis"`
}

// RedisConfig contains the redis store connection.
type RedisConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr" json:"addr"`
	Password     string `mapstructure:"password" yaml:"password" json:"password"`
	DB           int    `mapstructure:"db" yaml:"db" json:"db"`
	Key          string `mapstructure:"key" yaml:"key" json:"key"`
	SeedFromFile bool   `mapstructure:"seed_from_file" yaml:"seed_from_file" json:"seed_from_file"`
}

// DefaultConfig returns a configuration with sensible defaults, derived from
// the package defaults so both stay in step.
func DefaultConfig() *Config {
	proj := roi.DefaultProjectorConfig()
	stab := stabilizer.DefaultConfig()
	rec := recognizer.DefaultConfig()
	pipe := pipeline.DefaultConfig()
	loc := barcode.DefaultOptions()
	cli := client.DefaultConfig()
	srv := server.DefaultConfig()
	st := store.DefaultConfig()

	return &Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Scan: ScanConfig{
			Source:           "frames",
			Forward:          string(pipe.Forward),
			FPS:              pipe.FPS,
			WarmupIterations: pipe.WarmupIterations,
		},
		ROI: ROIConfig{
			Padding:     proj.Padding,
			OffsetX:     proj.OffsetX,
			WidthMargin: proj.WidthMargin,
			AspectRatio: proj.AspectRatio,
		},
		Stabilizer: StabilizerConfig{
			HistorySize:        stab.HistorySize,
			PushMinLength:      stab.PushMinLength,
			CandidateMinLength: stab.CandidateMinLength,
		},
		Recognizer: RecognizerConfig{
			Backend:          string(rec.Backend),
			ImageHeight:      rec.ImageHeight,
			MaxWidth:         rec.MaxWidth,
			PadWidthMultiple: rec.PadWidthMultiple,
			NumThreads:       rec.NumThreads,
			Language:         rec.Language,
			PageMode:         rec.PageMode,
			Whitelist:        rec.Whitelist,
			Binarize:         pipe.Binarize,
			GPU: GPUConfig{
				MemoryLimit: "auto",
			},
		},
		Locator: LocatorConfig{
			TryHarder:   loc.TryHarder,
			DecodeValue: loc.DecodeValue,
		},
		Client: ClientConfig{
			URL:             cli.URL,
			DialTimeoutSec:  int(cli.DialTimeout / time.Second),
			ReplyTimeoutSec: int(cli.ReplyTimeout / time.Second),
		},
		Server: ServerConfig{
			Host:            srv.Host,
			Port:            srv.Port,
			CORSOrigin:      srv.CORSOrigin,
			StaticDir:       srv.StaticDir,
			TimeoutSec:      srv.TimeoutSec,
			ShutdownTimeout: srv.ShutdownTimeout,
			MaxMessageBytes: srv.MaxMessageBytes,
			RateLimit: RateLimitConfig{
				Enabled:           srv.RateLimit.Enabled,
				RequestsPerSecond: srv.RateLimit.RequestsPerSecond,
				Burst:             srv.RateLimit.Burst,
				MessagesPerSecond: srv.RateLimit.MessagesPerSecond,
				MessageBurst:      srv.RateLimit.MessageBurst,
			},
		},
		Store: StoreConfig{
			Backend: st.Backend,
			Path:    st.Path,
			Fsync:   st.Fsync,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  st.RedisKey,
			},
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Log.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Log.Level, strings.Join(validLogLevels, ", "))
	}

	validForward := []string{"stabilized", "candidate", "both", "none"}
	if !contains(validForward, c.Scan.Forward) {
		return fmt.Errorf("invalid forward mode: %s (must be one of: %s)", c.Scan.Forward, strings.Join(validForward, ", "))
	}
	if c.Scan.FPS < 0 {
		return fmt.Errorf("invalid scan fps: %v (must not be negative)", c.Scan.FPS)
	}

	if c.ROI.AspectRatio <= 0 {
		return fmt.Errorf("invalid roi aspect ratio: %v (must be positive)", c.ROI.AspectRatio)
	}
	if c.Stabilizer.HistorySize <= 0 {
		return fmt.Errorf("invalid stabilizer history size: %d (must be positive)", c.Stabilizer.HistorySize)
	}
	if c.Stabilizer.PushMinLength < 0 || c.Stabilizer.CandidateMinLength < 0 {
		return fmt.Errorf("invalid stabilizer gates: %d/%d (must not be negative)",
			c.Stabilizer.PushMinLength, c.Stabilizer.CandidateMinLength)
	}

	validBackends := []string{string(recognizer.BackendONNX), string(recognizer.BackendTesseract)}
	if !contains(validBackends, c.Recognizer.Backend) {
		return fmt.Errorf("invalid recognizer backend: %s (must be one of: %s)", c.Recognizer.Backend, strings.Join(validBackends, ", "))
	}
	if err := validateMemoryLimit(c.Recognizer.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	if c.Client.DialTimeoutSec <= 0 || c.Client.ReplyTimeoutSec <= 0 {
		return fmt.Errorf("invalid client timeouts: %d/%d (must be positive)", c.Client.DialTimeoutSec, c.Client.ReplyTimeoutSec)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxMessageBytes <= 0 {
		return fmt.Errorf("invalid max message size: %d (must be positive)", c.Server.MaxMessageBytes)
	}
	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RequestsPerSecond <= 0 || c.Server.RateLimit.MessagesPerSecond <= 0) {
		return fmt.Errorf("invalid rate limit: rates must be positive when enabled")
	}

	validStores := []string{store.BackendFile, store.BackendRedis}
	if !contains(validStores, c.Store.Backend) {
		return fmt.Errorf("invalid store backend: %s (must be one of: %s)", c.Store.Backend, strings.Join(validStores, ", "))
	}

	return nil
}

// ToPipelineConfig converts the config to the scanning session configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Projector: roi.ProjectorConfig{
			Padding:     c.ROI.Padding,
			OffsetX:     c.ROI.OffsetX,
			WidthMargin: c.ROI.WidthMargin,
			AspectRatio: c.ROI.AspectRatio,
		},
		Stabilizer: stabilizer.Config{
			HistorySize:        c.Stabilizer.HistorySize,
			PushMinLength:      c.Stabilizer.PushMinLength,
			CandidateMinLength: c.Stabilizer.CandidateMinLength,
		},
		Binarize:         c.Recognizer.Binarize,
		Forward:          pipeline.ForwardMode(c.Scan.Forward),
		FPS:              c.Scan.FPS,
		OverlayDir:       c.Scan.OverlayDir,
		WarmupIterations: c.Scan.WarmupIterations,
	}
}

// ToRecognizerConfig converts to recognizer.Config.
func (c *Config) ToRecognizerConfig() recognizer.Config {
	cfg := recognizer.DefaultConfig()
	cfg.Backend = recognizer.Backend(c.Recognizer.Backend)
	cfg.ModelPath = c.Recognizer.ModelPath
	if cfg.ModelPath == "" {
		cfg.ModelPath = models.GetRecognitionModelPath(c.Recognizer.ModelsDir, c.Recognizer.UseServerModel)
	}
	cfg.DictPath = c.Recognizer.DictPath
	if cfg.DictPath == "" {
		cfg.DictPath = models.GetDictionaryPath(c.Recognizer.ModelsDir, models.DictionaryPPOCRKeysV1)
	}
	cfg.LibraryPath = c.Recognizer.LibraryPath
	cfg.ImageHeight = c.Recognizer.ImageHeight
	cfg.MaxWidth = c.Recognizer.MaxWidth
	cfg.PadWidthMultiple = c.Recognizer.PadWidthMultiple
	cfg.NumThreads = c.Recognizer.NumThreads
	if c.Recognizer.Language != "" {
		cfg.Language = c.Recognizer.Language
	}
	cfg.PageMode = c.Recognizer.PageMode
	cfg.Whitelist = c.Recognizer.Whitelist
	cfg.GPU = c.toGPUConfig()
	return cfg
}

// toGPUConfig converts to onnx.GPUConfig. The limit was checked by Validate.
func (c *Config) toGPUConfig() onnx.GPUConfig {
	cfg := onnx.DefaultGPUConfig()
	cfg.UseGPU = c.Recognizer.GPU.Enabled
	cfg.DeviceID = c.Recognizer.GPU.Device
	if n, err := parseMemoryLimit(c.Recognizer.GPU.MemoryLimit); err == nil {
		cfg.GPUMemLimit = n
	}
	return cfg
}

// ToLocatorOptions converts to barcode.Options.
func (c *Config) ToLocatorOptions() barcode.Options {
	return barcode.Options{
		TryHarder:   c.Locator.TryHarder,
		DecodeValue: c.Locator.DecodeValue,
	}
}

// ToClientConfig converts to client.Config.
func (c *Config) ToClientConfig() client.Config {
	return client.Config{
		URL:          c.Client.URL,
		DialTimeout:  time.Duration(c.Client.DialTimeoutSec) * time.Second,
		ReplyTimeout: time.Duration(c.Client.ReplyTimeoutSec) * time.Second,
	}
}

// ToServerConfig converts to server.Config.
func (c *Config) ToServerConfig() server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		CORSOrigin:      c.Server.CORSOrigin,
		StaticDir:       c.Server.StaticDir,
		TimeoutSec:      c.Server.TimeoutSec,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		MaxMessageBytes: c.Server.MaxMessageBytes,
		PublicURL:       c.Server.PublicURL,
		RateLimit: server.RateLimitConfig{
			Enabled:           c.Server.RateLimit.Enabled,
			RequestsPerSecond: c.Server.RateLimit.RequestsPerSecond,
			Burst:             c.Server.RateLimit.Burst,
			MessagesPerSecond: c.Server.RateLimit.MessagesPerSecond,
			MessageBurst:      c.Server.RateLimit.MessageBurst,
		},
	}
}

// ToStoreConfig converts to store.Config.
func (c *Config) ToStoreConfig() store.Config {
	return store.Config{
		Backend:       c.Store.Backend,
		Path:          c.Store.Path,
		Fsync:         c.Store.Fsync,
		RedisAddr:     c.Store.Redis.Addr,
		RedisPassword: c.Store.Redis.Password,
		RedisDB:       c.Store.Redis.DB,
		RedisKey:      c.Store.Redis.Key,
		SeedFromFile:  c.Store.Redis.SeedFromFile,
	}
}

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// validateMemoryLimit validates a GPU memory limit such as "1GB" or "512MB".
func validateMemoryLimit(limit string) error {
	_, err := parseMemoryLimit(limit)
	return err
}

// parseMemoryLimit converts a limit to bytes. "", "auto" and "0" mean no limit.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" || limit == "0" {
		return 0, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(limit))
	// Longest suffix first so "MB" is not read as "B".
	units := []struct {
		suffix string
		scale  float64
	}{
		{"KB", 1 << 10},
		{"MB", 1 << 20},
		{"GB", 1 << 30},
		{"B", 1},
	}
	for _, u := range units {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(upper, u.suffix), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.scale), nil
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB")
}
