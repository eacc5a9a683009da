package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var (
	instance *Config
	mu       sync.RWMutex
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
}

// APIConfig describes the upstream LCFS API
type APIConfig struct {
	BaseURL             string        `mapstructure:"base_url" validate:"required,url"`
	Token               string        `mapstructure:"token"`
	Timeout             time.Duration `mapstructure:"timeout" validate:"gt=0"`
	HealthPath          string        `mapstructure:"health_path" validate:"required,startswith=/"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval" validate:"gt=0"`
	MaxConcurrent       int           `mapstructure:"max_concurrent" validate:"min=1"`
}

// CacheConfig contains query cache configuration
type CacheConfig struct {
	Shards          int           `mapstructure:"shards" validate:"min=1"`
	GCTime          time.Duration `mapstructure:"gc_time" validate:"gt=0"`
	StaleTime       time.Duration `mapstructure:"stale_time"` // negative keeps entries fresh until invalidated
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"gt=0"`
}

// ReportsConfig bounds the working report cache
type ReportsConfig struct {
	MaxEntries int `mapstructure:"max_entries" validate:"min=1"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// RateLimitConfig is the fixed window limit of the BFF
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests" validate:"min=1"`
	Window   time.Duration `mapstructure:"window" validate:"gt=0"`
}

// Get returns the loaded configuration, or an empty one before Load
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return &Config{}
	}
	return instance
}

// Load initializes and loads configuration from file and environment variables
func Load(configPath string) error {
	cfg, err := Read(configPath)
	if err != nil {
		return err
	}

	mu.Lock()
	instance = cfg
	mu.Unlock()
	return nil
}

// Reload re-reads the configuration. The previous one stays active on error.
func Reload(configPath string) error {
	return Load(configPath)
}

// Read loads a configuration without installing it
func Read(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind env vars: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)

	// API defaults
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.health_path", "/health")
	v.SetDefault("api.health_check_interval", 30*time.Second)
	v.SetDefault("api.max_concurrent", 10)

	// Cache defaults
	v.SetDefault("cache.shards", 16)
	v.SetDefault("cache.gc_time", 5*time.Minute)
	v.SetDefault("cache.stale_time", time.Minute)
	v.SetDefault("cache.cleanup_interval", time.Minute)

	v.SetDefault("reports.max_entries", 64)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("rate_limit.requests", 600)
	v.SetDefault("rate_limit.window", time.Minute)
}

// envBindings maps viper keys to environment variables
var envBindings = map[string]string{
	"server.host":               "APP_SERVER_HOST",
	"server.port":               "APP_SERVER_PORT",
	"server.read_timeout":       "APP_SERVER_READ_TIMEOUT",
	"server.write_timeout":      "APP_SERVER_WRITE_TIMEOUT",
	"server.request_timeout":    "APP_SERVER_REQUEST_TIMEOUT",
	"api.base_url":              "APP_API_BASE_URL",
	"api.token":                 "APP_API_TOKEN",
	"api.timeout":               "APP_API_TIMEOUT",
	"api.health_path":           "APP_API_HEALTH_PATH",
	"api.health_check_interval": "APP_API_HEALTH_CHECK_INTERVAL",
	"api.max_concurrent":        "APP_API_MAX_CONCURRENT",
	"cache.shards":              "APP_CACHE_SHARDS",
	"cache.gc_time":             "APP_CACHE_GC_TIME",
	"cache.stale_time":          "APP_CACHE_STALE_TIME",
	"cache.cleanup_interval":    "APP_CACHE_CLEANUP_INTERVAL",
	"reports.max_entries":       "APP_REPORTS_MAX_ENTRIES",
	"logging.level":             "APP_LOGGING_LEVEL",
	"logging.development":       "APP_LOGGING_DEVELOPMENT",
	"rate_limit.requests":       "APP_RATE_LIMIT_REQUESTS",
	"rate_limit.window":         "APP_RATE_LIMIT_WINDOW",
}

// bindEnvVars binds environment variables to viper keys
func bindEnvVars(v *viper.Viper) error {
	var errs []error
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

var configValidator = validator.New()

// validate performs validation on the configuration
func validate(cfg *Config) error {
	return configValidator.Struct(cfg)
}
