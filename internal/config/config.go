// Package config holds the typed, documented configuration structs for
// the Analytics Engine and Batch Processor (spec §4.10, §6), loadable
// from YAML via gopkg.in/yaml.v3 — the same library the teacher uses for
// its own config.yaml.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds the options named in spec §4.10.
type EngineConfig struct {
	// EnableIncrementalProcessing: if false, ProcessNeedingAnalysis is a
	// no-op returning 0.
	EnableIncrementalProcessing bool `yaml:"enable_incremental_processing"`

	// CacheExpiration is the report-cache TTL.
	CacheExpiration time.Duration `yaml:"-"`
	CacheExpirationMinutes float64 `yaml:"cache_expiration_minutes"`

	// BatchProcessingSize is the default chunk size for incremental
	// scans. Must be >= 1.
	BatchProcessingSize int `yaml:"batch_processing_size"`

	// MaxProcessingTime is the soft deadline across batch phases,
	// checked between items, never mid-statement. 0 means "return
	// immediately with processed=0".
	MaxProcessingTime time.Duration `yaml:"-"`
	MaxProcessingTimeMs int64 `yaml:"max_processing_time_ms"`
}

// DefaultEngineConfig returns the engine's documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		EnableIncrementalProcessing: true,
		CacheExpirationMinutes:      15,
		CacheExpiration:             15 * time.Minute,
		BatchProcessingSize:         50,
		MaxProcessingTimeMs:         30_000,
		MaxProcessingTime:           30 * time.Second,
	}
}

// Normalize derives the time.Duration fields from their millisecond/minute
// counterparts after a YAML load, and validates invariants.
func (c *EngineConfig) Normalize() error {
	if c.BatchProcessingSize < 1 {
		return fmt.Errorf("config: batch_processing_size must be >= 1, got %d", c.BatchProcessingSize)
	}
	if c.MaxProcessingTimeMs < 0 {
		return fmt.Errorf("config: max_processing_time_ms must be >= 0, got %d", c.MaxProcessingTimeMs)
	}
	c.CacheExpiration = time.Duration(c.CacheExpirationMinutes * float64(time.Minute))
	c.MaxProcessingTime = time.Duration(c.MaxProcessingTimeMs) * time.Millisecond
	return nil
}

// BatchProcessorConfig holds the options named in spec §6.
type BatchProcessorConfig struct {
	BatchSize             int  `yaml:"batch_size"`
	MaxConcurrency        int  `yaml:"max_concurrency"`
	MaxMemoryUsageMB      int  `yaml:"max_memory_usage_mb"`
	EnableProgressTracking bool `yaml:"enable_progress_tracking"`
	EnableErrorRecovery   bool `yaml:"enable_error_recovery"`
	RetryAttempts         int  `yaml:"retry_attempts"`
}

// DefaultBatchProcessorConfig returns the processor's documented defaults
// (spec §5: "max_concurrency, default 4").
func DefaultBatchProcessorConfig() BatchProcessorConfig {
	return BatchProcessorConfig{
		BatchSize:              50,
		MaxConcurrency:         4,
		MaxMemoryUsageMB:       1024,
		EnableProgressTracking: true,
		EnableErrorRecovery:    true,
		RetryAttempts:          3,
	}
}

func (c *BatchProcessorConfig) Normalize() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("config: max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("config: batch_size must be >= 0, got %d", c.BatchSize)
	}
	return nil
}

// LoadEngineConfig reads an EngineConfig from a YAML file, applying
// defaults for any field the file omits.
func LoadEngineConfig(path string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadBatchProcessorConfig reads a BatchProcessorConfig from a YAML file,
// applying defaults for any field the file omits.
func LoadBatchProcessorConfig(path string) (BatchProcessorConfig, error) {
	cfg := DefaultBatchProcessorConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
