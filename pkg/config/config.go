package config

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

const (
	// ConfigFileName is the persisted config file inside the config dir.
	ConfigFileName = "relic.yaml"

	// CurrentVersion is the only config file version understood.
	CurrentVersion = 1
)

// Config is the on-disk form of the user's catalog preferences.
type Config struct {
	Version int `json:"version"`

	// BaseURL overrides the svntogit base, e.g. to point at a mirror.
	BaseURL string `json:"baseURL,omitempty"`

	// Repos narrows or reorders the repositories searched, by name.
	Repos []string `json:"repos,omitempty"`
}

// Default returns an empty config at the current version.
func Default() *Config {
	return &Config{Version: CurrentVersion}
}

func UnmarshalConfig(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version %d (want %d)", c.Version, CurrentVersion)
	}
	return nil
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := UnmarshalConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// SaveFile writes cfg to path, creating parent directories as needed.
func SaveFile(path string, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
