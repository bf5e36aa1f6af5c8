package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/shelfsync/shelfsync"
	"github.com/shelfsync/shelfsync/internal/config"
	"github.com/shelfsync/shelfsync/pkg/conflict"
	"github.com/shelfsync/shelfsync/pkg/logging"
)

// pairsFile is the YAML input format shared by the detect, resolve, and
// batch commands: record pairs as the sync transport hands them over.
type pairsFile struct {
	Pairs []conflict.Pair `yaml:"pairs" json:"pairs"`
}

// loadPairs reads record pairs from a YAML file.
func loadPairs(path string) ([]conflict.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var file pairsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(file.Pairs) == 0 {
		return nil, fmt.Errorf("%s contains no record pairs", path)
	}
	return file.Pairs, nil
}

// newEngine builds an engine from the configured engine config file. The
// flag wins; the SHELFSYNC_ENGINE_CONFIG environment variable (or viper
// key) is the fallback.
func newEngine(engineConfig string) (shelfsync.Engine, error) {
	if engineConfig == "" {
		engineConfig = config.GetString("SHELFSYNC_ENGINE_CONFIG")
	}
	opts := []shelfsync.Option{
		shelfsync.WithLogger(logging.Default()),
	}
	if engineConfig != "" {
		opts = append(opts, shelfsync.WithConfigFile(engineConfig))
	}
	return shelfsync.New(opts...)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
