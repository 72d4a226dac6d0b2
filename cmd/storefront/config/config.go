package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is filled from flag defaults first; environment variables win when set.
type Config struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	DatabaseURI     string        `env:"DATABASE_URI"`
	JWTSecret       string        `env:"JWT_SECRET"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:","`
	LogLevel        string        `env:"LOG_LEVEL"`
	LogFormat       string        `env:"LOG_FORMAT"`
	LogFile         string        `env:"LOG_FILE"`
	LogMaxSizeMB    int           `env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups   int           `env:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays   int           `env:"LOG_MAX_AGE_DAYS"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"`
	HistoryLimit    int           `env:"HISTORY_LIMIT"`
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

func New() *Config {
	return &Config{
		RunAddress:      ":8080",
		DatabaseURI:     "storefront.db",
		CORSOrigins:     []string{"http://localhost:5173"},
		LogLevel:        "info",
		LogFormat:       "json",
		LogMaxSizeMB:    100,
		LogMaxBackups:   5,
		LogMaxAgeDays:   28,
		ShutdownTimeout: 15 * time.Second,
		HistoryLimit:    50,
	}
}

// ApplyEnv overrides fields for which an environment variable is present.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks settings required to serve HTTP traffic.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	if c.DatabaseURI == "" {
		return errors.New("database uri is empty")
	}
	return nil
}
