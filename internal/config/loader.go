package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "zyndicator"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "ZYNDICATOR"

	// DefaultEnvFile is loaded into the environment when present.
	DefaultEnvFile = ".env"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on a private viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// NewLoaderWithViper creates a loader on v, typically one with flags bound.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. An empty path means
// DefaultEnvFile, which may be absent.
func LoadEnvFile(path string) error {
	optional := path == ""
	if optional {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}
	return nil
}

// Load reads defaults, the first config file found on the search path and
// the environment, then validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithoutValidation is Load without the final Validate.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile loads configuration from a specific file path. An empty path
// falls back to the search path.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithFileWithoutValidation is LoadWithFile without the final Validate.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file on the search path: defaults and env only.
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// addConfigPaths adds the standard configuration search paths.
func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

// setupEnvironmentVariables maps server.port to ZYNDICATOR_SERVER_PORT.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.file", d.Log.File)
	l.v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	l.v.SetDefault("log.max_backups", d.Log.MaxBackups)
	l.v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	l.v.SetDefault("log.compress", d.Log.Compress)

	l.v.SetDefault("scan.source", d.Scan.Source)
	l.v.SetDefault("scan.forward", d.Scan.Forward)
	l.v.SetDefault("scan.fps", d.Scan.FPS)
	l.v.SetDefault("scan.overlay_dir", d.Scan.OverlayDir)
	l.v.SetDefault("scan.warmup_iterations", d.Scan.WarmupIterations)

	l.v.SetDefault("roi.padding", d.ROI.Padding)
	l.v.SetDefault("roi.offset_x", d.ROI.OffsetX)
	l.v.SetDefault("roi.width_margin", d.ROI.WidthMargin)
	l.v.SetDefault("roi.aspect_ratio", d.ROI.AspectRatio)

	l.v.SetDefault("stabilizer.history_size", d.Stabilizer.HistorySize)
	l.v.SetDefault("stabilizer.push_min_length", d.Stabilizer.PushMinLength)
	l.v.SetDefault("stabilizer.candidate_min_length", d.Stabilizer.CandidateMinLength)

	l.v.SetDefault("recognizer.backend", d.Recognizer.Backend)
	l.v.SetDefault("recognizer.models_dir", d.Recognizer.ModelsDir)
	l.v.SetDefault("recognizer.use_server_model", d.Recognizer.UseServerModel)
	l.v.SetDefault("recognizer.model_path", d.Recognizer.ModelPath)
	l.v.SetDefault("recognizer.dict_path", d.Recognizer.DictPath)
	l.v.SetDefault("recognizer.library_path", d.Recognizer.LibraryPath)
	l.v.SetDefault("recognizer.image_height", d.Recognizer.ImageHeight)
	l.v.SetDefault("recognizer.max_width", d.Recognizer.MaxWidth)
	l.v.SetDefault("recognizer.pad_width_multiple", d.Recognizer.PadWidthMultiple)
	l.v.SetDefault("recognizer.num_threads", d.Recognizer.NumThreads)
	l.v.SetDefault("recognizer.language", d.Recognizer.Language)
	l.v.SetDefault("recognizer.page_mode", d.Recognizer.PageMode)
	l.v.SetDefault("recognizer.whitelist", d.Recognizer.Whitelist)
	l.v.SetDefault("recognizer.binarize", d.Recognizer.Binarize)
	l.v.SetDefault("recognizer.gpu.enabled", d.Recognizer.GPU.Enabled)
	l.v.SetDefault("recognizer.gpu.device", d.Recognizer.GPU.Device)
	l.v.SetDefault("recognizer.gpu.memory_limit", d.Recognizer.GPU.MemoryLimit)

	l.v.SetDefault("locator.try_harder", d.Locator.TryHarder)
	l.v.SetDefault("locator.decode_value", d.Locator.DecodeValue)

	l.v.SetDefault("client.url", d.Client.URL)
	l.v.SetDefault("client.dial_timeout_sec", d.Client.DialTimeoutSec)
	l.v.SetDefault("client.reply_timeout_sec", d.Client.ReplyTimeoutSec)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.static_dir", d.Server.StaticDir)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.max_message_bytes", d.Server.MaxMessageBytes)
	l.v.SetDefault("server.public_url", d.Server.PublicURL)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_second", d.Server.RateLimit.RequestsPerSecond)
	l.v.SetDefault("server.rate_limit.burst", d.Server.RateLimit.Burst)
	l.v.SetDefault("server.rate_limit.messages_per_second", d.Server.RateLimit.MessagesPerSecond)
	l.v.SetDefault("server.rate_limit.message_burst", d.Server.RateLimit.MessageBurst)

	l.v.SetDefault("store.backend", d.Store.Backend)
	l.v.SetDefault("store.path", d.Store.Path)
	l.v.SetDefault("store.fsync", d.Store.Fsync)
	l.v.SetDefault("store.redis.addr", d.Store.Redis.Addr)
	l.v.SetDefault("store.redis.password", d.Store.Redis.Password)
	l.v.SetDefault("store.redis.db", d.Store.Redis.DB)
	l.v.SetDefault("store.redis.key", d.Store.Redis.Key)
	l.v.SetDefault("store.redis.seed_from_file", d.Store.Redis.SeedFromFile)
}

// GetResolvedConfig returns the current resolved configuration for debugging.
func (l *Loader) GetResolvedConfig() map[string]interface{} {
	return l.v.AllSettings()
}

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error {
	return l.v.WriteConfigAs(filename)
}

// GenerateDefaultConfigFile writes the defaults to filename, zyndicator.yaml
// when empty.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoader()
	loader.setDefaults()

	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns the paths where configuration files are searched.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if configDir, exists := os.LookupEnv("XDG_CONFIG_HOME"); exists {
		paths = append(paths, filepath.Join(configDir, "zyndicator"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "zyndicator"))
	}
	paths = append(paths, "/etc/zyndicator")

	return paths
}
