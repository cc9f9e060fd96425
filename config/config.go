package config

import (
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	FFBin              string        `mapstructure:"FF_BIN"`
	FFExtraArgs        string        `mapstructure:"FF_EXTRA_ARGS"`
	MaxConcurrency     int           `mapstructure:"MAX_CONCURRENCY"`
	MaxClips           int           `mapstructure:"MAX_CLIPS"`
	MaxDownloadSize    int64         `mapstructure:"MAX_DOWNLOAD_SIZE"`
	TransitionDuration time.Duration `mapstructure:"TRANSITION_DURATION"`
	RecordMaxAge       time.Duration `mapstructure:"RECORD_MAX_AGE"`
	JobStaleAfter      time.Duration `mapstructure:"JOB_STALE_AFTER"`
	CleanupInterval    time.Duration `mapstructure:"CLEANUP_INTERVAL"`
	DataDir            string        `mapstructure:"DATA_DIR"`

	RegistryURL      string        `mapstructure:"REGISTRY_URL"`
	RegistryClientID string        `mapstructure:"REGISTRY_CLIENT_ID"`
	RegistryRPS      float64       `mapstructure:"REGISTRY_RPS"`
	RegistryBurst    int           `mapstructure:"REGISTRY_BURST"`
	RegistryTimeout  time.Duration `mapstructure:"REGISTRY_TIMEOUT"`

	AccessToken     string        `mapstructure:"ACCESS_TOKEN"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	TokenQuery      string        `mapstructure:"TOKEN_QUERY"`
	RedisURL        string        `mapstructure:"REDIS_URL"`
	ResolveCacheTTL time.Duration `mapstructure:"RESOLVE_CACHE_TTL"`

	ThrottleCPU      float64 `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64   `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64   `mapstructure:"THROTTLE_FREEDISK"`

	AuthEnable bool   `mapstructure:"AUTH_ENABLE"`
	AuthKey    string `mapstructure:"AUTH_KEY"`
	Port       string `mapstructure:"PORT"`
	BaseURL    string `mapstructure:"BASE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// WorkDir holds one sub-directory per running job for downloaded clips and the
// concat manifest.
func (c *Config) WorkDir() string {
	return filepath.Join(c.DataDir, "work")
}

// OutputDir holds finished compilations.
func (c *Config) OutputDir() string {
	return filepath.Join(c.DataDir, "output")
}

// DatabasePath is the SQLite file backing compilation history.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "compilations.db")
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

func setDefaults(vp *viper.Viper) {
	// Set default values as strings, the hooks will handle them.
	vp.SetDefault("FF_BIN", "ffmpeg")
	vp.SetDefault("FF_EXTRA_ARGS", "")
	vp.SetDefault("MAX_CONCURRENCY", 2)
	vp.SetDefault("MAX_CLIPS", 20)
	vp.SetDefault("MAX_DOWNLOAD_SIZE", "500MB")
	vp.SetDefault("TRANSITION_DURATION", "500ms")
	vp.SetDefault("RECORD_MAX_AGE", "168h")
	vp.SetDefault("JOB_STALE_AFTER", "24h")
	vp.SetDefault("CLEANUP_INTERVAL", "24h")
	vp.SetDefault("DATA_DIR", "./data")

	vp.SetDefault("REGISTRY_URL", "https://api.twitch.tv/helix")
	vp.SetDefault("REGISTRY_CLIENT_ID", "")
	vp.SetDefault("REGISTRY_RPS", 10.0)
	vp.SetDefault("REGISTRY_BURST", 5)
	vp.SetDefault("REGISTRY_TIMEOUT", "10s")

	vp.SetDefault("ACCESS_TOKEN", "")
	vp.SetDefault("DATABASE_URL", "")
	vp.SetDefault("TOKEN_QUERY", "SELECT access_token FROM users WHERE id = $1")
	vp.SetDefault("REDIS_URL", "")
	vp.SetDefault("RESOLVE_CACHE_TTL", "1h")

	vp.SetDefault("THROTTLE_CPU", 0.0)
	vp.SetDefault("THROTTLE_FREEMEM", 0)
	vp.SetDefault("THROTTLE_FREEDISK", 0)

	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("BASE", "")

	vp.SetDefault("LOG_LEVEL", "info")
	vp.SetDefault("LOG_FORMAT", "json")
}

func Load() (*Config, error) {
	vp := viper.New()
	setDefaults(vp)

	// Load from config file
	vp.SetConfigName("clipcompiler_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/clipcompiler/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Load from environment variables
	vp.SetEnvPrefix("CLIPCOMPILER")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	// The order matters: the first hook that succeeds is used.
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
