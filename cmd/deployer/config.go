package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/artpar/deployer/internal/shell/executor"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// Job result cache backends.
const (
	JobCacheMemory = "memory"
	JobCacheSQLite = "sqlite"
)

// JobsConfig selects where job results are kept.
type JobsConfig struct {
	// Cache is "memory" (lost on restart) or "sqlite" (the job_results table).
	Cache string `mapstructure:"cache"`
}

// ExecutorConfig holds the in-process executor configuration.
type ExecutorConfig struct {
	QueueSize int `mapstructure:"queue_size"`
	// Workers above 1 allow the same unit to be processed concurrently.
	Workers int `mapstructure:"workers"`
	// Mode is "async" (queued) or "sync" (deploy runs inside the request).
	Mode string `mapstructure:"mode"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Validate checks values viper can not check for us.
func (c *Config) Validate() error {
	switch c.Jobs.Cache {
	case JobCacheMemory, JobCacheSQLite:
	default:
		return fmt.Errorf("jobs.cache must be %q or %q, got %q", JobCacheMemory, JobCacheSQLite, c.Jobs.Cache)
	}
	if c.Executor.QueueSize <= 0 {
		return fmt.Errorf("executor.queue_size must be positive, got %d", c.Executor.QueueSize)
	}
	if c.Executor.Workers <= 0 {
		return fmt.Errorf("executor.workers must be positive, got %d", c.Executor.Workers)
	}
	if _, err := executor.ParseMode(c.Executor.Mode); err != nil {
		return fmt.Errorf("executor.mode: %w", err)
	}
	return nil
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/deployer.db")
	v.SetDefault("jobs.cache", JobCacheMemory)
	v.SetDefault("executor.queue_size", 100)
	v.SetDefault("executor.workers", 1)
	v.SetDefault("executor.mode", executor.ModeAsync)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.enabled", true)

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// A missing file falls back to defaults; a broken one does not.
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("DEPLOYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Jobs.Cache = strings.ToLower(cfg.Jobs.Cache)
	cfg.Executor.Mode = strings.ToLower(cfg.Executor.Mode)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
