package cli

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds file-based defaults for the CLI. Flags override file values.
type Config struct {
	// Database selects the backend, as scheme:location. Supported schemes:
	// memory (JSON file), sqlite (database file), badger (directory).
	Database string `yaml:"database"`

	// Tree is the name of the tree commands operate on.
	Tree string `yaml:"tree"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Database: "memory:loom.json",
		Tree:     "todo",
	}
}

// LoadConfig reads a YAML config file. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
