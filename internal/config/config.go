package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"scorekit/domain/frame"
	"scorekit/internal/errors"
	"scorekit/internal/logging"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Scoring  ScoringConfig
	Server   ServerConfig
	LogLevel logging.Level
}

// DatabaseConfig holds database connection settings. An empty URL selects the
// in-memory repositories.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// ScoringConfig holds the execution settings for adaptation and scoring
type ScoringConfig struct {
	Parallelism      int
	ChunkRows        int
	StrictAdaptation bool
	Timeout          time.Duration
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:          getEnvOrDefault("DATABASE_URL", ""),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		},
		Scoring: ScoringConfig{
			Parallelism:      getEnvIntOrDefault("SCORE_PARALLELISM", runtime.GOMAXPROCS(0)),
			ChunkRows:        getEnvIntOrDefault("CHUNK_ROWS", frame.DefaultChunkRows),
			StrictAdaptation: getEnvBoolOrDefault("STRICT_ADAPTATION", false),
			Timeout:          getEnvDurationOrDefault("SCORE_TIMEOUT", 10*time.Minute),
		},
		Server: ServerConfig{
			Port:         getEnvOrDefault("PORT", "8080"),
			ReadTimeout:  getEnvDurationOrDefault("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDurationOrDefault("HTTP_WRITE_TIMEOUT", 10*time.Minute),
		},
	}

	levelName := getEnvOrDefault("LOG_LEVEL", "INFO")
	level, ok := logging.ParseLevel(levelName)
	if !ok {
		return nil, errors.ConfigInvalid(fmt.Sprintf("LOG_LEVEL %q is not one of ERROR, WARN, INFO, DEBUG", levelName))
	}
	config.LogLevel = level

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// UsesDatabase reports whether a postgres store is configured
func (c *Config) UsesDatabase() bool {
	return c.Database.URL != ""
}

func validateConfig(config *Config) error {
	if config.Scoring.Parallelism < 1 {
		return errors.ConfigInvalid("SCORE_PARALLELISM must be >= 1")
	}
	if config.Scoring.ChunkRows < 1 {
		return errors.ConfigInvalid("CHUNK_ROWS must be >= 1")
	}
	if config.Scoring.Timeout <= 0 {
		return errors.ConfigInvalid("SCORE_TIMEOUT must be positive")
	}
	if port, err := strconv.Atoi(config.Server.Port); err != nil || port < 1 || port > 65535 {
		return errors.ConfigInvalid("PORT must be a TCP port number")
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
