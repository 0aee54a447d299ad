// Package common provides shared utilities for Tally
package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Tally. It is constructed once at
// process start and injected into constructors; nothing reads process-wide
// state after startup.
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Cube        CubeConfig    `toml:"cube"`
	Auth        AuthConfig    `toml:"auth"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection configuration.
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// CubeConfig bounds cube maintenance cost and staleness.
type CubeConfig struct {
	// RecomputeInterval is how often the scheduler drains deferred
	// recompute tasks. It is the documented staleness bound for bulk writes.
	RecomputeInterval string `toml:"recompute_interval"`
	// MaxRebuildRangeDays caps rebuild-for-range cost.
	MaxRebuildRangeDays int `toml:"max_rebuild_range_days"`
	// DefaultBatchSize for populate-historical runs.
	DefaultBatchSize int `toml:"default_batch_size"`
	// MaintenanceRatePerMin rate-limits rebuild/populate requests per tenant.
	MaintenanceRatePerMin int `toml:"maintenance_rate_per_min"`
}

// GetRecomputeInterval parses the interval, defaulting to 30s.
func (c *CubeConfig) GetRecomputeInterval() time.Duration {
	d, err := time.ParseDuration(c.RecomputeInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// AuthConfig holds bearer-token validation configuration. Token issuance is
// handled by the external identity service; Tally only validates.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000/rpc",
			Namespace: "tally",
			Database:  "tally",
			Username:  "root",
			Password:  "root",
		},
		Cube: CubeConfig{
			RecomputeInterval:     "30s",
			MaxRebuildRangeDays:   731, // two years, leap-safe
			DefaultBatchSize:      12,
			MaintenanceRatePerMin: 6,
		},
		Auth: AuthConfig{
			JWTSecret: "dev-jwt-secret-change-in-production",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TALLY_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("TALLY_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("TALLY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("TALLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if addr := os.Getenv("TALLY_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if ns := os.Getenv("TALLY_STORAGE_NAMESPACE"); ns != "" {
		config.Storage.Namespace = ns
	}
	if db := os.Getenv("TALLY_STORAGE_DATABASE"); db != "" {
		config.Storage.Database = db
	}
	if u := os.Getenv("TALLY_STORAGE_USERNAME"); u != "" {
		config.Storage.Username = u
	}
	if p := os.Getenv("TALLY_STORAGE_PASSWORD"); p != "" {
		config.Storage.Password = p
	}
	if v := os.Getenv("TALLY_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("TALLY_CUBE_RECOMPUTE_INTERVAL"); v != "" {
		config.Cube.RecomputeInterval = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
