package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	require.NoError(t, cfg.Normalize())
	assert.True(t, cfg.EnableIncrementalProcessing)
	assert.Equal(t, 15*time.Minute, cfg.CacheExpiration)
	assert.Equal(t, 30*time.Second, cfg.MaxProcessingTime)
}

func TestEngineConfigRejectsZeroBatchSize(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.BatchProcessingSize = 0
	assert.Error(t, cfg.Normalize())
}

func TestLoadEngineConfigAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_processing_size: 200\n"), 0o600))

	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.BatchProcessingSize)
	assert.True(t, cfg.EnableIncrementalProcessing) // default preserved
}

func TestDefaultBatchProcessorConfig(t *testing.T) {
	cfg := DefaultBatchProcessorConfig()
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, 4, cfg.MaxConcurrency)
}
