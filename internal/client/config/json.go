package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/trainlog/internal/filex"
)

// ErrConfigExists is returned by Init when the file is already there.
var ErrConfigExists = errors.New("config file already exists")

// parseJson overlays cfg with the file at path. Keys missing from the file
// keep their current value; a missing file leaves cfg untouched.
func parseJson(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Marshal renders the stored part of cfg as indented JSON.
func (c *Config) Marshal() ([]byte, error) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Save writes cfg to cfg.Path, creating the directory when needed.
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := filex.EnsureDir(filepath.Dir(c.Path)); err != nil {
		return err
	}
	b, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Path, b, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", c.Path, err)
	}
	return nil
}

// Init writes the default settings to path. An existing file is only
// replaced when force is set.
func Init(path string, force bool) (*Config, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return nil, fmt.Errorf("%w: %s (use -force to overwrite)", ErrConfigExists, path)
	}
	cfg := Default()
	cfg.Path = path
	cfg.DataDir = filepath.Dir(path)
	if err := cfg.Save(); err != nil {
		return nil, err
	}
	return cfg, nil
}
