package api

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a many-assets.yaml file, applies defaults and environment
// overrides, sets Dir/FilePath, and validates it.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	cfg.FilePath = absPath
	cfg.Dir = filepath.Dir(absPath)

	return finish(&cfg, filename)
}

// LoadDefault returns the built-in configuration rooted at dir, with
// environment overrides applied.
func LoadDefault(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	return finish(&Config{Dir: absDir}, "defaults")
}

func finish(cfg *Config, source string) (*Config, error) {
	cfg.ApplyDefaults()

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", source, err)
	}
	return cfg, nil
}

// ApplyEnv overlays MANY_ASSETS_* environment variables on the server and
// cache settings.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(&cfg.Server); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if err := env.Parse(&cfg.Cache); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Abs resolves a config-relative path against Dir.
func (c *Config) Abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}
