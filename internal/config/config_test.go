// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Training.Factors != 30 || cfg.Training.Epochs != 10 {
		t.Errorf("Training = %d factors / %d epochs, want 30/10", cfg.Training.Factors, cfg.Training.Epochs)
	}
	if cfg.Training.MaxUsers != 10 {
		t.Errorf("Training.MaxUsers = %d, want 10", cfg.Training.MaxUsers)
	}
	if cfg.Training.DefaultRewards != 3 {
		t.Errorf("Training.DefaultRewards = %d, want 3", cfg.Training.DefaultRewards)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.SMTP.Enabled {
		t.Error("SMTP should be disabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
training:
  epochs: 25
  max_users: 0
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090 from file", cfg.Server.Port)
	}
	if cfg.Training.Epochs != 25 {
		t.Errorf("Training.Epochs = %d, want 25 from file", cfg.Training.Epochs)
	}
	if cfg.Training.MaxUsers != 0 {
		t.Errorf("Training.MaxUsers = %d, want 0 from file", cfg.Training.MaxUsers)
	}
	// Untouched fields keep defaults.
	if cfg.Training.Factors != 30 {
		t.Errorf("Training.Factors = %d, want default 30", cfg.Training.Factors)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("REWARDLY_SERVER_PORT", "7070")
	t.Setenv("REWARDLY_TRAINING_LEARNING_RATE", "0.1")
	t.Setenv("REWARDLY_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Training.LearningRate != 0.1 {
		t.Errorf("Training.LearningRate = %v, want 0.1", cfg.Training.LearningRate)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("REWARDLY_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestValidationRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero epochs", func(c *Config) { c.Training.Epochs = 0 }},
		{"negative learning rate", func(c *Config) { c.Training.LearningRate = -1 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad from address", func(c *Config) { c.SMTP.From = "not-an-email" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should reject the configuration")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"REWARDLY_SERVER_PORT", "server.port"},
		{"REWARDLY_TRAINING_MAX_USERS", "training.max_users"},
		{"REWARDLY_SMTP_RATE_PER_SECOND", "smtp.rate_per_second"},
		{"REWARDLY_STORE_MODEL_DIR", "store.model_dir"},
		{"UNRELATED_VAR", ""},
		{"REWARDLY_NOPE_FIELD", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultTimeouts(t *testing.T) {
	cfg := defaultConfig()
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Server.Timeout = %v, want 30s", cfg.Server.Timeout)
	}
	if cfg.Training.Timeout != 10*time.Minute {
		t.Errorf("Training.Timeout = %v, want 10m", cfg.Training.Timeout)
	}
}
