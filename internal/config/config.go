package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/openfda-engine/")
	v.AddConfigPath("$HOME/.openfda-engine")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("FDA_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The upstream key is usually exported under its conventional name.
	if err := v.BindEnv("openfda.api_key", "FDA_ENGINE_OPENFDA_API_KEY", "OPENFDA_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind api key env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit file path
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Upstream defaults
	v.SetDefault("openfda.base_url", "https://api.fda.gov")
	v.SetDefault("openfda.api_key", "")
	v.SetDefault("openfda.timeout", "15s")
	v.SetDefault("openfda.user_agent", "openfda-engine/1.0")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.ttl.drug_label", "24h")
	v.SetDefault("cache.ttl.shortage", "30m")
	v.SetDefault("cache.ttl.adverse_event", "1h")
	v.SetDefault("cache.sqlite_path", "file:openfda_cache?mode=memory&cache=shared")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/openfda")
	v.SetDefault("cache.postgres_dsn", "postgres://localhost:5432/openfda?sslmode=disable")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	v.SetDefault("cache.redis_prefix", "openfda:")

	// Batch defaults
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.shortage_limit", 10)
	v.SetDefault("batch.trend_months", 12)

	// Trend defaults
	v.SetDefault("trends.high_threshold", 0.5)
	v.SetDefault("trends.moderate_threshold", 0.2)
	v.SetDefault("trends.fetch_limit", 100)

	// Label defaults
	v.SetDefault("label.max_section_size", 4096)

	// Server defaults
	v.SetDefault("server.frontend", "http")
	v.SetDefault("server.listen_address", "0.0.0.0:8080")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
