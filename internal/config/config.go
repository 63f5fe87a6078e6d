// Package config provides configuration management for cyclebuf.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the cyclebuf configuration: where state lives and which buffers
// every record carries.
type Config struct {
	// Database is the SQLite database path. Empty means the default
	// (~/.cyclebuf/state.db).
	Database string `yaml:"database"`

	Buffers []BufferConfig `yaml:"buffers"`
}

// BufferConfig declares one cycle buffer allocated on every record.
type BufferConfig struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
	Slot     string `yaml:"slot"` // text|integer|real|json|record (default text)
}

// DefaultConfigPath returns the default config file path
// (~/.cyclebuf/config.yaml).
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".cyclebuf", "config.yaml"), nil
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromFile(path)
}

// LoadFromFile loads configuration from the specified file.
// A missing file yields the default configuration.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the default configuration: one text buffer holding
// the ten most recent entries.
func DefaultConfig() *Config {
	return &Config{
		Buffers: []BufferConfig{
			{Name: "recent", Capacity: 10, Slot: "text"},
		},
	}
}

// Validate validates the configuration. Capacity errors are configuration
// errors: a buffer below capacity 1 cannot exist, so loading fails rather
// than deferring to first use.
func (c *Config) Validate() error {
	if len(c.Buffers) == 0 {
		return errors.New("at least one buffer must be configured")
	}

	seen := make(map[string]bool, len(c.Buffers))
	for _, b := range c.Buffers {
		if b.Name == "" {
			return errors.New("buffer name is required")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate buffer name %q", b.Name)
		}
		seen[b.Name] = true

		if b.Capacity < 1 {
			return fmt.Errorf("buffer %q capacity must be >= 1 (got: %d)", b.Name, b.Capacity)
		}
		switch b.Slot {
		case "", "text", "integer", "real", "json", "record":
		default:
			return fmt.Errorf("buffer %q slot must be text, integer, real, json, or record (got: %s)", b.Name, b.Slot)
		}
	}
	return nil
}
