// Package config loads server configuration from the environment, with
// an optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/quill/toil-tracker/toil"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	JWT    JWTConfig
	Policy toil.Policy
}

// AppConfig holds HTTP server settings.
type AppConfig struct {
	Port     int
	Env      string
	LogLevel string
	Seed     bool
}

// DBConfig selects the backing store. DATABASE_URL set means Postgres;
// otherwise the SQLite path is used.
type DBConfig struct {
	DatabaseURL string
	SQLitePath  string
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// Load reads the .env file if present, then the environment. Missing
// values fall back to development defaults, except JWT_SECRET which is
// required outside development.
func Load() (*Config, error) {
	// Absence of .env is fine in production; the environment is authoritative.
	_ = godotenv.Load()

	cfg := &Config{}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	cfg.App = AppConfig{
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Seed:     getEnv("SEED_DATA", "") == "true",
	}

	cfg.DB = DBConfig{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/toil.db"),
	}

	ttl, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	cfg.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET", ""),
		TTL:    ttl,
	}

	cfg.Policy = toil.DefaultPolicy()
	if v := getEnv("CONTRACTED_MINUTES", ""); v != "" {
		if cfg.Policy.ContractedMinutes, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid CONTRACTED_MINUTES: %w", err)
		}
	}
	if v := getEnv("GRID_MINUTES", ""); v != "" {
		if cfg.Policy.GridMinutes, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid GRID_MINUTES: %w", err)
		}
	}
	if v := getEnv("MAX_BALANCE_MINUTES", ""); v != "" {
		if cfg.Policy.MaxBalanceMinutes, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid MAX_BALANCE_MINUTES: %w", err)
		}
	}
	if v := getEnv("EXPIRY_DAYS", ""); v != "" {
		if cfg.Policy.ExpiryDays, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("invalid EXPIRY_DAYS: %w", err)
		}
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		if c.App.Env != "development" {
			return fmt.Errorf("JWT_SECRET is required")
		}
		c.JWT.Secret = "dev-insecure-secret"
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
