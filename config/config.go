// Package config loads lexicache settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ZaguanLabs/lexicache/history"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Source providers.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Config holds all lexicache settings.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Source    SourceConfig    `yaml:"source"`
	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig selects and configures the durable backend.
type StorageConfig struct {
	Backend   string        `yaml:"backend" env:"LEXICACHE_STORAGE_BACKEND"`
	Path      string        `yaml:"path" env:"LEXICACHE_STORAGE_PATH"`
	RedisURL  string        `yaml:"redis_url" env:"LEXICACHE_REDIS_URL"`
	KeyPrefix string        `yaml:"key_prefix" env:"LEXICACHE_REDIS_PREFIX"`
	RedisTTL  time.Duration `yaml:"redis_ttl" env:"LEXICACHE_REDIS_TTL"`
	OpTimeout time.Duration `yaml:"op_timeout" env:"LEXICACHE_STORAGE_TIMEOUT"`
}

// SourceConfig configures the lookup source.
type SourceConfig struct {
	Provider       string  `yaml:"provider" env:"LEXICACHE_SOURCE"`
	APIKey         string  `yaml:"api_key" env:"OPENAI_API_KEY"`
	Model          string  `yaml:"model" env:"LEXICACHE_MODEL"`
	BaseURL        string  `yaml:"base_url" env:"OPENAI_BASE_URL"`
	Temperature    float32 `yaml:"temperature" env:"LEXICACHE_TEMPERATURE"`
	ReaderLanguage string  `yaml:"reader_language" env:"LEXICACHE_READER_LANGUAGE"`
	PrefetchLimit  int     `yaml:"prefetch_limit" env:"LEXICACHE_PREFETCH_LIMIT"`
}

// RetryConfig configures retries of failed lookups.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" env:"LEXICACHE_RETRY_MAX"`
	BaseDelay  time.Duration `yaml:"base_delay" env:"LEXICACHE_RETRY_BASE_DELAY"`
	MaxDelay   time.Duration `yaml:"max_delay" env:"LEXICACHE_RETRY_MAX_DELAY"`
}

// RateLimitConfig configures the source rate limit. Zero disables it.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" env:"LEXICACHE_RATE_LIMIT_RPM"`
	BurstSize         int `yaml:"burst_size" env:"LEXICACHE_RATE_LIMIT_BURST"`
}

// HistoryConfig configures history retention.
type HistoryConfig struct {
	RetentionPolicy string `yaml:"retention_policy" env:"LEXICACHE_RETENTION_POLICY"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LEXICACHE_LOG_LEVEL"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:   BackendSQLite,
			Path:      defaultDBPath(),
			KeyPrefix: "lexicache:",
			OpTimeout: 5 * time.Second,
		},
		Source: SourceConfig{
			Provider:       ProviderOpenAI,
			Model:          "gpt-4o-mini",
			Temperature:    0.3,
			ReaderLanguage: "en",
			PrefetchLimit:  4,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
			MaxDelay:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		History: HistoryConfig{
			RetentionPolicy: history.PolicyForever,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "lexicache.db"
	}
	return filepath.Join(dir, "lexicache", "lexicache.db")
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates the result. A missing file, or an
// empty path, leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects unknown backends, providers, policies and log levels.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite backend"))
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	switch c.Source.Provider {
	case ProviderOpenAI, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown source provider %q", c.Source.Provider))
	}

	if _, ok := history.LookupPolicy(c.History.RetentionPolicy); !ok {
		errs = append(errs, fmt.Errorf("unknown retention policy %q", c.History.RetentionPolicy))
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("retry.max_retries must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
