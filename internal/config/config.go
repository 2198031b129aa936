package config

import (
	"os"
	"strconv"
	"strings"

	"peerscan/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Worker   WorkerConfig
	LogLevel string
}

// DatabaseConfig holds database connection settings. An empty URL disables persistence.
type DatabaseConfig struct {
	URL    string
	Driver string
}

// Enabled reports whether runs should be persisted.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	UIPort  string
	GinMode string
}

// WorkerConfig bounds the analysis workload
type WorkerConfig struct {
	MaxConcurrentRuns int
	MaxRequestRows    int
}

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: loadDatabaseConfig(),
		Server:   loadServerConfig(),
		Worker:   loadWorkerConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:    os.Getenv("DATABASE_URL"),
		Driver: strings.ToLower(getEnvOrDefault("DB_DRIVER", DriverPostgres)),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		UIPort:  getEnvOrDefault("UI_PORT", "8081"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxConcurrentRuns: getEnvIntOrDefault("MAX_CONCURRENT_RUNS", 4),
		MaxRequestRows:    getEnvIntOrDefault("MAX_REQUEST_ROWS", 1_000_000),
	}
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return errors.ConfigInvalid("DB_DRIVER must be postgres or sqlite, got " + strconv.Quote(config.Database.Driver))
	}
	if config.Server.Port == config.Server.UIPort {
		return errors.ConfigInvalid("PORT and UI_PORT must differ")
	}
	if config.Worker.MaxConcurrentRuns < 1 {
		return errors.ConfigInvalid("MAX_CONCURRENT_RUNS must be at least 1")
	}
	if config.Worker.MaxRequestRows < 1 {
		return errors.ConfigInvalid("MAX_REQUEST_ROWS must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
