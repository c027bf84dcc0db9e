// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	ListenAddr      string
	DatabasePath    string
	PostingInterval time.Duration
	PostingWorkers  int
	PostingRetries  int
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DatabasePath:    getEnv("DATABASE_PATH", "fineract.db"),
		PostingInterval: 24 * time.Hour,
		PostingWorkers:  8,
		PostingRetries:  3,
	}

	var err error
	if cfg.PostingInterval, err = getDuration("POSTING_INTERVAL", cfg.PostingInterval); err != nil {
		return nil, err
	}
	if cfg.PostingWorkers, err = getInt("POSTING_WORKERS", cfg.PostingWorkers); err != nil {
		return nil, err
	}
	if cfg.PostingRetries, err = getInt("POSTING_RETRIES", cfg.PostingRetries); err != nil {
		return nil, err
	}
	if cfg.PostingWorkers <= 0 {
		return nil, fmt.Errorf("POSTING_WORKERS must be positive, got %d", cfg.PostingWorkers)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
