// Package config holds the engine's configuration surface: detection
// thresholds, strategy selection, and performance bounds. Configuration
// loads from YAML with sane defaults; every field is optional.
package config

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/shelfsync/shelfsync/pkg/errors"
)

// DetectionThresholds configures when a divergence becomes a conflict.
type DetectionThresholds struct {
	// ProgressPercent is the reading-progress difference, in percentage
	// points, above which a progress mismatch is flagged.
	ProgressPercent float64 `yaml:"progressPercent" json:"progressPercent"`

	// TitleSimilarity is the similarity score below which two titles are
	// considered different works, in [0,1].
	TitleSimilarity float64 `yaml:"titleSimilarity" json:"titleSimilarity"`

	// Timestamp is the update-time gap above which replicas are
	// considered to have diverged in time.
	Timestamp time.Duration `yaml:"timestamp" json:"timestamp"`

	// TagDifference is the tag-set difference ratio above which tag sets
	// are flagged, in [0,1].
	TagDifference float64 `yaml:"tagDifference" json:"tagDifference"`
}

// ResolutionStrategies configures strategy selection.
type ResolutionStrategies struct {
	// EnableAutoResolution gates automatic execution; when false every
	// conflict routes to manual review.
	EnableAutoResolution bool `yaml:"enableAutoResolution" json:"enableAutoResolution"`

	// DefaultStrategy is used when a caller does not pin one. Empty means
	// the highest-confidence applicable strategy wins.
	DefaultStrategy string `yaml:"defaultStrategy" json:"defaultStrategy"`

	// MaxBatchSize is the sub-batch size for batch runs.
	MaxBatchSize int `yaml:"maxBatchSize" json:"maxBatchSize"`
}

// Performance configures the engine's resource bounds.
type Performance struct {
	// MaxProcessingTime bounds one batch run. Zero disables the bound.
	MaxProcessingTime time.Duration `yaml:"maxProcessingTime" json:"maxProcessingTime"`

	// MemoryLimitBytes bounds the batch working set. Zero disables it.
	MemoryLimitBytes int64 `yaml:"memoryLimitBytes" json:"memoryLimitBytes"`

	// CacheTTL is how long detection results stay cached.
	CacheTTL time.Duration `yaml:"cacheTTL" json:"cacheTTL"`

	// CacheMaxItems bounds the detection cache. Zero disables the bound.
	CacheMaxItems int `yaml:"cacheMaxItems" json:"cacheMaxItems"`
}

// Config is the engine configuration.
type Config struct {
	DetectionThresholds  DetectionThresholds  `yaml:"detectionThresholds" json:"detectionThresholds"`
	ResolutionStrategies ResolutionStrategies `yaml:"resolutionStrategies" json:"resolutionStrategies"`
	Performance          Performance          `yaml:"performance" json:"performance"`
}

// Default returns the configuration the engine ships with.
func Default() *Config {
	return &Config{
		DetectionThresholds: DetectionThresholds{
			ProgressPercent: 10,
			TitleSimilarity: 0.8,
			Timestamp:       24 * time.Hour,
			TagDifference:   0.25,
		},
		ResolutionStrategies: ResolutionStrategies{
			EnableAutoResolution: true,
			MaxBatchSize:         100,
		},
		Performance: Performance{
			MaxProcessingTime: 5 * time.Minute,
			MemoryLimitBytes:  64 << 20,
			CacheTTL:          5 * time.Minute,
			CacheMaxItems:     10000,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.WrapValidation("config", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapValidation("config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration's value ranges.
func (c *Config) Validate() error {
	t := c.DetectionThresholds
	if t.ProgressPercent < 0 || t.ProgressPercent > 100 {
		return errors.NewValidationError("detectionThresholds.progressPercent", t.ProgressPercent,
			"must be between 0 and 100")
	}
	if t.TitleSimilarity < 0 || t.TitleSimilarity > 1 {
		return errors.NewValidationError("detectionThresholds.titleSimilarity", t.TitleSimilarity,
			"must be between 0 and 1")
	}
	if t.TagDifference < 0 || t.TagDifference > 1 {
		return errors.NewValidationError("detectionThresholds.tagDifference", t.TagDifference,
			"must be between 0 and 1")
	}
	if t.Timestamp < 0 {
		return errors.NewValidationError("detectionThresholds.timestamp", t.Timestamp,
			"must not be negative")
	}
	if c.ResolutionStrategies.MaxBatchSize < 0 {
		return errors.NewValidationError("resolutionStrategies.maxBatchSize",
			c.ResolutionStrategies.MaxBatchSize, "must not be negative")
	}
	if c.Performance.MemoryLimitBytes < 0 {
		return errors.NewValidationError("performance.memoryLimitBytes",
			c.Performance.MemoryLimitBytes, "must not be negative")
	}
	return nil
}
