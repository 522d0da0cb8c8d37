// Package config loads the coach CLI settings.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see Default).
//  2. The JSON file: -c/-config, else $AI_COACH_CONFIG, else
//     <data dir>/config.json. A missing file is not an error.
//  3. Command-line flags -a (API base URL), -d (data dir), -v (verbose)
//     and -offline.
//
// File layout:
//
//	{
//	  "api":      {"base_url": "http://localhost:3000", "timeout": "30s"},
//	  "sync":     {"auto_sync": true, "conflict_resolution": "server_wins"},
//	  "ui":       {"color": true, "date_format": "2006-01-02"},
//	  "workouts": {"default_exercise_type": "running", "distance_unit": "km"}
//	}
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/trainlog/internal/client/syncer"
	"github.com/dmitrijs2005/trainlog/internal/filex"
	"github.com/dmitrijs2005/trainlog/internal/timex"
)

const (
	DefaultDataDir  = "~/.ai-coach"
	ConfigFileName  = "config.json"
	DatabaseName    = "local.db"
	ConfigPathEnv   = "AI_COACH_CONFIG"
	DistanceKm      = "km"
	DistanceMiles   = "mi"
	defaultTimeout  = 30 * time.Second
	defaultBaseURL  = "http://localhost:3000"
	defaultExercise = "running"
)

type Config struct {
	API      APIConfig      `json:"api"`
	Sync     SyncConfig     `json:"sync"`
	UI       UIConfig       `json:"ui"`
	Workouts WorkoutsConfig `json:"workouts"`

	// Set at load time, never stored.
	DataDir string `json:"-"`
	Path    string `json:"-"`
	Verbose bool   `json:"-"`
	Offline bool   `json:"-"`
}

type APIConfig struct {
	BaseURL string         `json:"base_url"`
	Timeout timex.Duration `json:"timeout"`
}

type SyncConfig struct {
	AutoSync           bool   `json:"auto_sync"`
	ConflictResolution string `json:"conflict_resolution"`
}

type UIConfig struct {
	Color bool `json:"color"`

	// DateFormat is a Go reference-time layout.
	DateFormat string `json:"date_format"`
}

type WorkoutsConfig struct {
	DefaultExerciseType string `json:"default_exercise_type"`
	DistanceUnit        string `json:"distance_unit"`
}

// Default returns the settings used when nothing else is configured.
func Default() *Config {
	return &Config{
		API:      APIConfig{BaseURL: defaultBaseURL, Timeout: timex.Duration{Duration: defaultTimeout}},
		Sync:     SyncConfig{AutoSync: true, ConflictResolution: string(syncer.ServerWins)},
		UI:       UIConfig{Color: true, DateFormat: "2006-01-02"},
		Workouts: WorkoutsConfig{DefaultExerciseType: defaultExercise, DistanceUnit: DistanceKm},
		DataDir:  DefaultDataDir,
	}
}

// DatabasePath is the local store inside the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseName)
}

// Strategy is the parsed conflict resolution setting.
func (c *Config) Strategy() (syncer.Strategy, error) {
	return syncer.ParseStrategy(c.Sync.ConflictResolution)
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout.Duration <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if _, err := c.Strategy(); err != nil {
		return fmt.Errorf("sync.conflict_resolution: %w", err)
	}
	if c.UI.DateFormat == "" {
		return fmt.Errorf("ui.date_format must not be empty")
	}
	switch c.Workouts.DistanceUnit {
	case DistanceKm, DistanceMiles:
	default:
		return fmt.Errorf("workouts.distance_unit must be km or mi, got %q", c.Workouts.DistanceUnit)
	}
	return nil
}

// LoadConfig builds the configuration from defaults, the JSON file and the
// global flags in args.
func LoadConfig(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	fv, err := parseFlags(args)
	if err != nil {
		return nil, err
	}
	if fv.dataDir != "" {
		cfg.DataDir = fv.dataDir
	}
	if cfg.DataDir, err = filex.ExpandHome(cfg.DataDir); err != nil {
		return nil, err
	}

	cfg.Path = resolvePath(cfg.DataDir, fv.configPath, getenv(ConfigPathEnv))
	if cfg.Path, err = filex.ExpandHome(cfg.Path); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, cfg.Path); err != nil {
		return nil, err
	}

	fv.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfg.Path, err)
	}
	return cfg, nil
}

func resolvePath(dataDir, flagPath, envPath string) string {
	switch {
	case flagPath != "":
		return flagPath
	case envPath != "":
		return envPath
	default:
		return filepath.Join(dataDir, ConfigFileName)
	}
}
