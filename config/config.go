package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Sources   SourcesConfig
	Engine    EngineConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SourcesConfig holds one block per external catalog
type SourcesConfig struct {
	Compuzone SourceConfig `mapstructure:"compuzone"`
	Guidecom  SourceConfig `mapstructure:"guidecom"`
}

// SourceConfig holds the fetch policy of one source
type SourceConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retries       int           `mapstructure:"retries"`
	Backoff       time.Duration `mapstructure:"backoff"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	PageSize      int           `mapstructure:"page_size"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// EngineConfig holds aggregation engine configuration
type EngineConfig struct {
	UnitTimeout    time.Duration `mapstructure:"unit_timeout"`
	PerSourceLimit int           `mapstructure:"per_source_limit"`
}

// SessionConfig holds session store configuration
type SessionConfig struct {
	Store    string        `mapstructure:"store"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/partscout/")

	// Environment variable settings, e.g. PARTSCOUT_SOURCES_GUIDECOM_RETRIES
	v.SetEnvPrefix("PARTSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads .env from the working directory if present. Variables
// already set in the environment win.
func loadEnvFile() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Source defaults
	setSourceDefaults(v, "compuzone", "https://www.compuzone.co.kr")
	setSourceDefaults(v, "guidecom", "https://www.guidecom.co.kr")

	// Engine defaults
	v.SetDefault("engine.unit_timeout", "30s")
	v.SetDefault("engine.per_source_limit", 20)

	// Session defaults
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.ttl", "30m")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)
}

func setSourceDefaults(v *viper.Viper, name, baseURL string) {
	prefix := "sources." + name + "."
	v.SetDefault(prefix+"enabled", true)
	v.SetDefault(prefix+"base_url", baseURL)
	v.SetDefault(prefix+"timeout", "5s")
	v.SetDefault(prefix+"retries", 2)
	v.SetDefault(prefix+"backoff", "500ms")
	v.SetDefault(prefix+"rate_per_second", 2.0)
	v.SetDefault(prefix+"burst", 2)
	v.SetDefault(prefix+"page_size", 50)
	v.SetDefault(prefix+"user_agent", defaultUserAgent)
}

// validate validates the configuration
func validate(config *Config) error {
	if !config.Sources.Compuzone.Enabled && !config.Sources.Guidecom.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}

	if config.Sources.Compuzone.Enabled {
		if err := validateSource("compuzone", config.Sources.Compuzone); err != nil {
			return err
		}
	}
	if config.Sources.Guidecom.Enabled {
		if err := validateSource("guidecom", config.Sources.Guidecom); err != nil {
			return err
		}
	}

	if config.Engine.UnitTimeout <= 0 {
		return fmt.Errorf("engine unit timeout must be positive, got: %s", config.Engine.UnitTimeout)
	}

	if config.Engine.PerSourceLimit < 0 {
		return fmt.Errorf("engine per-source limit must not be negative, got: %d", config.Engine.PerSourceLimit)
	}

	if config.Session.Store != "memory" && config.Session.Store != "redis" {
		return fmt.Errorf("session store must be 'memory' or 'redis', got: %s", config.Session.Store)
	}

	if config.Session.Store == "redis" && config.Session.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when session store is 'redis'")
	}

	if config.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got: %s", config.Session.TTL)
	}

	if config.RateLimit.PerIP <= 0 {
		return fmt.Errorf("per-IP rate limit must be positive, got: %d", config.RateLimit.PerIP)
	}

	return nil
}

func validateSource(name string, source SourceConfig) error {
	if source.BaseURL == "" {
		return fmt.Errorf("%s base URL is required", name)
	}
	if source.Timeout <= 0 {
		return fmt.Errorf("%s timeout must be positive, got: %s", name, source.Timeout)
	}
	// At most three attempts per call
	if source.Retries < 0 || source.Retries > 2 {
		return fmt.Errorf("%s retries must be between 0 and 2, got: %d", name, source.Retries)
	}
	if source.RatePerSecond <= 0 || source.Burst < 1 {
		return fmt.Errorf("%s rate limit must be positive, got: %.2f/s burst %d", name, source.RatePerSecond, source.Burst)
	}
	if source.PageSize < 1 {
		return fmt.Errorf("%s page size must be positive, got: %d", name, source.PageSize)
	}
	return nil
}
