// Package config loads ledgerd settings from the environment.
// A .env file in the working directory is read first if present.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	DBPath   string `env:"DB_PATH" envDefault:"./data/ledger.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Auth     AuthConfig
	Schedule ScheduleConfig
	Notify   NotifyConfig
}

// AuthConfig configures bearer token signing.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"24h"`
}

// ScheduleConfig configures the recurring transaction processor.
type ScheduleConfig struct {
	Interval    time.Duration `env:"SCHEDULE_INTERVAL" envDefault:"1h"`
	Concurrency int           `env:"SCHEDULE_CONCURRENCY" envDefault:"4"`
	MaxBatch    int           `env:"SCHEDULE_MAX_BATCH" envDefault:"500"`
}

// NotifyConfig configures the notification queue.
type NotifyConfig struct {
	BufferSize int `env:"NOTIFY_BUFFER" envDefault:"256"`
}

// Load reads configuration from environment variables.
// An explicit envPath must exist; otherwise ./.env is loaded if it is there.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed to serve requests.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.Schedule.Interval <= 0 {
		errs = append(errs, errors.New("SCHEDULE_INTERVAL must be positive"))
	}
	if c.Schedule.Concurrency < 1 {
		errs = append(errs, errors.New("SCHEDULE_CONCURRENCY must be at least 1"))
	}
	if c.Schedule.MaxBatch < 1 {
		errs = append(errs, errors.New("SCHEDULE_MAX_BATCH must be at least 1"))
	}
	if c.Notify.BufferSize < 1 {
		errs = append(errs, errors.New("NOTIFY_BUFFER must be at least 1"))
	}
	return errors.Join(errs...)
}
