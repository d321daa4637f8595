package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// FallbackConfig controls the synchronous key-value tier used for
// crash-safety while the durable store is slow or unavailable.
type FallbackConfig struct {
	Path string `mapstructure:"path"` // empty means in-memory only
}

// RemoteConfig points at the optional cloud mirror. Leaving it disabled
// (or the base URL empty) silently skips every remote operation.
type RemoteConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

type AuthConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
}

// RetryConfig tunes the durable-write retry loop. BackoffMs is multiplied
// by the attempt number, so the defaults wait 100ms, 200ms, 300ms.
type RetryConfig struct {
	Attempts  int `mapstructure:"attempts"`
	BackoffMs int `mapstructure:"backoff_ms"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("CHRONO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})

	viper.SetDefault("database.path", "./chronochess.db")
	viper.SetDefault("fallback.path", "./chronochess.fallback.json")

	viper.SetDefault("remote.enabled", false)
	viper.SetDefault("remote.timeout", 10)

	viper.SetDefault("auth.session_secret", "change-this-in-production")

	viper.SetDefault("retry.attempts", 3)
	viper.SetDefault("retry.backoff_ms", 100)

	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, run on defaults.
	}

	// Local overrides (ignored by git) merged on top of the base file.
	viper.SetConfigName("config.local")
	viper.MergeInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
