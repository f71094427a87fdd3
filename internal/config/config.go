// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Package config loads and validates service configuration from layered
// sources: struct defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Training TrainingConfig `koanf:"training"`
	Store    StoreConfig    `koanf:"store"`
	SMTP     SMTPConfig     `koanf:"smtp"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// TrainingConfig holds model and pipeline parameters.
type TrainingConfig struct {
	Factors        int     `koanf:"factors" validate:"min=1,max=500"`
	Epochs         int     `koanf:"epochs" validate:"min=1,max=1000"`
	LearningRate   float64 `koanf:"learning_rate" validate:"gt=0,lte=1"`
	Regularization float64 `koanf:"regularization" validate:"gte=0,lte=10"`

	// MaxUsers bounds how many users receive recommendations per run
	// (0 = all users).
	MaxUsers int `koanf:"max_users" validate:"min=0"`

	// DefaultRewards is the per-user reward count when a request does not
	// specify one.
	DefaultRewards int `koanf:"default_rewards" validate:"min=1,max=100"`

	// ExcludeSeen drops already-interacted items from recommendations.
	ExcludeSeen bool `koanf:"exclude_seen"`

	// Workers and QueueSize shape the async training pool.
	Workers   int `koanf:"workers" validate:"min=1,max=64"`
	QueueSize int `koanf:"queue_size" validate:"min=1,max=1024"`

	// Timeout bounds one training run (0 = unbounded).
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
}

// StoreConfig holds persistence paths.
type StoreConfig struct {
	// Path is the BadgerDB directory; empty runs in-memory.
	Path string `koanf:"path"`

	// ModelDir is where trained model artifacts are written.
	ModelDir string `koanf:"model_dir" validate:"required"`
}

// SMTPConfig holds reward email delivery settings.
type SMTPConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host" validate:"required_if=Enabled true"`
	Port     int    `koanf:"port" validate:"min=0,max=65535"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from" validate:"omitempty,email"`
	FromName string `koanf:"from_name"`
	UseTLS   bool   `koanf:"use_tls"`

	// RatePerSecond throttles outbound messages (0 = unlimited).
	RatePerSecond float64 `koanf:"rate_per_second" validate:"min=0"`
}

// defaultConfig returns the built-in defaults, applied before the config
// file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Training: TrainingConfig{
			Factors:        30,
			Epochs:         10,
			LearningRate:   0.05,
			Regularization: 0.01,
			MaxUsers:       10,
			DefaultRewards: 3,
			ExcludeSeen:    false,
			Workers:        2,
			QueueSize:      16,
			Timeout:        10 * time.Minute,
		},
		Store: StoreConfig{
			Path:     "/data/rewardly",
			ModelDir: "/data/rewardly/models",
		},
		SMTP: SMTPConfig{
			Enabled:       false,
			Host:          "",
			Port:          587,
			From:          "",
			FromName:      "Rewardly",
			RatePerSecond: 1,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
