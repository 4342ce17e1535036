package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseURL     string
	StoreDriver     string
	MigrationsPath  string
	LogLevel        string
	Port            string
	PrometheusPort  string
	JWTSecret       string
	TelegramToken   string
	PublicBaseURL   string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	IdempotencyTTL  time.Duration
	NotifyQueueSize int
}

// Load reads an optional .env file, then configuration from environment
// variables, and validates the result.
func Load() (*Config, error) {
	// A missing .env file is fine; real deployments set the environment.
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StoreDriver:    getEnvOrDefault("STORE_DRIVER", StorePostgres),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		Port:           getEnvOrDefault("PORT", "8080"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		PublicBaseURL:  os.Getenv("PUBLIC_BASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}

	var result *multierror.Error

	var err error
	if cfg.RedisDB, err = strconv.Atoi(getEnvOrDefault("REDIS_DB", "0")); err != nil {
		result = multierror.Append(result, fmt.Errorf("REDIS_DB must be an integer: %w", err))
	}
	if cfg.IdempotencyTTL, err = time.ParseDuration(getEnvOrDefault("IDEMPOTENCY_TTL", "24h")); err != nil {
		result = multierror.Append(result, fmt.Errorf("IDEMPOTENCY_TTL must be a duration: %w", err))
	}
	if cfg.NotifyQueueSize, err = strconv.Atoi(getEnvOrDefault("NOTIFY_QUEUE_SIZE", "256")); err != nil {
		result = multierror.Append(result, fmt.Errorf("NOTIFY_QUEUE_SIZE must be an integer: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			result = multierror.Append(result, fmt.Errorf("DATABASE_URL environment variable is required"))
		}
	case StoreMemory:
	default:
		result = multierror.Append(result, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMemory, c.StoreDriver))
	}

	if c.JWTSecret == "" {
		result = multierror.Append(result, fmt.Errorf("JWT_SECRET environment variable is required"))
	}
	if c.IdempotencyTTL < 0 {
		result = multierror.Append(result, fmt.Errorf("IDEMPOTENCY_TTL must not be negative"))
	}
	if c.NotifyQueueSize < 0 {
		result = multierror.Append(result, fmt.Errorf("NOTIFY_QUEUE_SIZE must not be negative"))
	}

	return result.ErrorOrNil()
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
