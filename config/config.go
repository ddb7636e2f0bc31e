// Package config loads process configuration from the environment.
//
// The store-wide VIP program (goals, combo values, window anchors) is NOT
// process configuration: it is data held by a vip.ConfigStore. This package
// only covers how the server runs.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all server configuration loaded from environment variables.
type Config struct {
	Port            int           `envconfig:"VIP_PORT" default:"8080"`
	DBPath          string        `envconfig:"VIP_DB_PATH" default:"vip.db"`
	LogLevel        string        `envconfig:"VIP_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"VIP_LOG_FORMAT" default:"json"`
	StoreConfigFile string        `envconfig:"VIP_STORE_CONFIG_FILE"`
	CacheType       string        `envconfig:"VIP_CACHE_TYPE" default:"memory"`
	CacheMaxEntries int           `envconfig:"VIP_CACHE_MAX_ENTRIES" default:"1000"`
	RedisAddr       string        `envconfig:"VIP_REDIS_ADDR" default:"localhost:6379"`
	RedisPassword   string        `envconfig:"VIP_REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"VIP_REDIS_DB" default:"0"`
	CacheTTL        time.Duration `envconfig:"VIP_CACHE_TTL" default:"30s"`
	RefreshInterval time.Duration `envconfig:"VIP_REFRESH_INTERVAL" default:"0s"`
	AllowedOrigins  []string      `envconfig:"VIP_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
	TraceExporter   string        `envconfig:"VIP_TRACE_EXPORTER" default:"none"`
}

// Load reads configuration from .env file (if present) then from environment variables.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "file", ".env", "error", err)
		} else {
			slog.Info("loaded .env file", "file", ".env")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: VIP_PORT must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("%w: VIP_DB_PATH is empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: VIP_LOG_FORMAT must be json or text, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.CacheType {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: VIP_CACHE_TYPE must be memory or redis, got %q", ErrInvalidConfig, c.CacheType)
	}
	switch strings.ToLower(c.TraceExporter) {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("%w: VIP_TRACE_EXPORTER must be none or stdout, got %q", ErrInvalidConfig, c.TraceExporter)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: VIP_CACHE_TTL is negative", ErrInvalidConfig)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("%w: VIP_REFRESH_INTERVAL is negative", ErrInvalidConfig)
	}
	if c.RefreshInterval > 0 && c.RefreshInterval < time.Second {
		return fmt.Errorf("%w: VIP_REFRESH_INTERVAL must be at least 1s, got %s", ErrInvalidConfig, c.RefreshInterval)
	}
	return nil
}
