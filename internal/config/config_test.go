package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsync/shelfsync/pkg/errors"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10.0, cfg.DetectionThresholds.ProgressPercent)
	assert.Equal(t, 0.8, cfg.DetectionThresholds.TitleSimilarity)
	assert.Equal(t, 24*time.Hour, cfg.DetectionThresholds.Timestamp)
	assert.Equal(t, 0.25, cfg.DetectionThresholds.TagDifference)
	assert.True(t, cfg.ResolutionStrategies.EnableAutoResolution)
	assert.Equal(t, 100, cfg.ResolutionStrategies.MaxBatchSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathKeepsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
detectionThresholds:
  progressPercent: 5
  titleSimilarity: 0.9
resolutionStrategies:
  enableAutoResolution: false
  defaultStrategy: use-latest-timestamp
  maxBatchSize: 50
performance:
  memoryLimitBytes: 1048576
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.DetectionThresholds.ProgressPercent)
	assert.Equal(t, 0.9, cfg.DetectionThresholds.TitleSimilarity)
	// untouched keys keep their defaults
	assert.Equal(t, 24*time.Hour, cfg.DetectionThresholds.Timestamp)
	assert.False(t, cfg.ResolutionStrategies.EnableAutoResolution)
	assert.Equal(t, "use-latest-timestamp", cfg.ResolutionStrategies.DefaultStrategy)
	assert.Equal(t, 50, cfg.ResolutionStrategies.MaxBatchSize)
	assert.Equal(t, int64(1<<20), cfg.Performance.MemoryLimitBytes)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("detectionThresholds: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
detectionThresholds:
  titleSimilarity: 1.5
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative progress", func(c *Config) { c.DetectionThresholds.ProgressPercent = -1 }},
		{"progress over 100", func(c *Config) { c.DetectionThresholds.ProgressPercent = 101 }},
		{"similarity over 1", func(c *Config) { c.DetectionThresholds.TitleSimilarity = 2 }},
		{"negative tag ratio", func(c *Config) { c.DetectionThresholds.TagDifference = -0.1 }},
		{"negative timestamp", func(c *Config) { c.DetectionThresholds.Timestamp = -time.Hour }},
		{"negative batch size", func(c *Config) { c.ResolutionStrategies.MaxBatchSize = -1 }},
		{"negative memory limit", func(c *Config) { c.Performance.MemoryLimitBytes = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
