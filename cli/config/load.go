package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "flint.yaml"

// Load reads a config file, expands ${VAR} references, fills defaults and
// validates the result. Variables resolve from the process environment,
// then from a .env file next to the config, if present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	dotenv, err := readDotenv(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return nil, err
	}
	expanded := Expand(string(data), layered(dotenv))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	cfg.fillDefaults(settleDelaySet([]byte(expanded)))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOptional is Load, except that a missing file yields Defaults.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

func readDotenv(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return vars, nil
}

// settleDelaySet reports whether session.settle_delay is present, so an
// explicit "0s" is not replaced by the default.
func settleDelaySet(data []byte) bool {
	var probe struct {
		Session struct {
			SettleDelay *string `yaml:"settle_delay"`
		} `yaml:"session"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return false
	}
	return probe.Session.SettleDelay != nil
}
