// Package config loads the reasoner configuration from layered YAML files
// and environment overrides, and reloads it when the files change.
package config

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/gobwas/glob"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Reasoner ReasonerConfig `yaml:"reasoner"`
	Cache    CacheConfig    `yaml:"cache"`
	Store    StoreConfig    `yaml:"store"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ReasonerConfig struct {
	// Workers is the number of saturation workers.
	Workers int `yaml:"workers"`
	// Incremental enables incremental maintenance after axiom changes.
	Incremental bool `yaml:"incremental"`
	// ScanRatio tunes the replay scan strategy.
	ScanRatio int `yaml:"scan_ratio"`
	// BatchSize is the number of contexts per replay job.
	BatchSize int `yaml:"batch_size"`
	// TracePatterns are glob patterns over root IRIs whose conclusions
	// are logged.
	TracePatterns []string `yaml:"trace_patterns"`
}

type CacheConfig struct {
	// QuerySize is the number of cached query results; 0 disables caching.
	QuerySize int `yaml:"query_size"`
}

type StoreConfig struct {
	// Path of the SQLite database; empty disables persistence.
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

func DefaultConfig() *Config {
	return &Config{
		Reasoner: ReasonerConfig{
			Workers:     runtime.NumCPU(),
			Incremental: true,
			ScanRatio:   4,
			BatchSize:   128,
		},
		Cache: CacheConfig{
			QuerySize: 1024,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "saturn",
		},
	}
}

// Validate checks value ranges and trace patterns.
func (c *Config) Validate() error {
	if c.Reasoner.Workers < 1 {
		return fmt.Errorf("%w: reasoner.workers must be positive, got %d", ErrInvalidConfig, c.Reasoner.Workers)
	}
	if c.Reasoner.ScanRatio < 1 {
		return fmt.Errorf("%w: reasoner.scan_ratio must be positive, got %d", ErrInvalidConfig, c.Reasoner.ScanRatio)
	}
	if c.Reasoner.BatchSize < 1 {
		return fmt.Errorf("%w: reasoner.batch_size must be positive, got %d", ErrInvalidConfig, c.Reasoner.BatchSize)
	}
	if c.Cache.QuerySize < 0 {
		return fmt.Errorf("%w: cache.query_size must not be negative", ErrInvalidConfig)
	}
	for _, p := range c.Reasoner.TracePatterns {
		if _, err := glob.Compile(p); err != nil {
			return fmt.Errorf("%w: trace pattern %q: %v", ErrInvalidConfig, p, err)
		}
	}
	return nil
}
