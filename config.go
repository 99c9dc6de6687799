package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds the worker settings. Values come from the optional YAML file
// first and are then overridden by the environment.
type Config struct {
	// Partitions is the number of sub-windows summarized in parallel. More
	// than one replaces single-pass quantile estimates with merged ones.
	Partitions int       `yaml:"partitions"`
	Queue      string    `yaml:"queue"`
	RedisURL   string    `yaml:"redis_url"`
	Quantiles  []float64 `yaml:"quantiles"`
	LogLevel   string    `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		Partitions: 1,
		Queue:      "default",
		RedisURL:   "redis://localhost:6379/0",
		Quantiles:  []float64{0.25, 0.5, 0.75},
		LogLevel:   "info",
	}
}

// loadConfig reads path (if non-empty), applies environment overrides and
// validates the result.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv("WORKER_QUEUE"); v != "" {
		c.Queue = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("WORKER_PARTITIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WORKER_PARTITIONS: %w", err)
		}
		c.Partitions = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.Partitions < 1 {
		return fmt.Errorf("partitions must be at least 1, got %d", c.Partitions)
	}
	if c.Queue == "" {
		return errors.New("queue name is empty")
	}
	if len(c.Quantiles) != 3 {
		return fmt.Errorf("expected 3 quantiles (q1, median, q3), got %d", len(c.Quantiles))
	}
	for i, p := range c.Quantiles {
		if !(p > 0 && p < 1) {
			return fmt.Errorf("quantile %v is outside (0, 1)", p)
		}
		if i > 0 && p <= c.Quantiles[i-1] {
			return fmt.Errorf("quantiles must be increasing: %v", c.Quantiles)
		}
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
