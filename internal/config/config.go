// Package config loads and watches the host configuration file.
//
// The configuration is a TOML document holding the monitored process pair,
// the two display resolution profiles, and the directories the plugin
// system operates on. A Store wraps the loaded value and hands out
// consistent snapshots to concurrent readers.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Resolution is one display mode triple.
type Resolution struct {
	Width   int `toml:"width"`
	Height  int `toml:"height"`
	Refresh int `toml:"refresh"`
}

// String returns the conventional WxH @Hz rendering.
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d @%dHz", r.Width, r.Height, r.Refresh)
}

// IsZero reports whether the resolution is unset.
func (r Resolution) IsZero() bool {
	return r.Width == 0 && r.Height == 0 && r.Refresh == 0
}

// Config is the host configuration document.
type Config struct {
	// Process names the monitor loop watches.
	LauncherProcess string `toml:"launcher_process"`
	GameProcess     string `toml:"game_process"`

	// Default is restored when the game exits; Enabled is applied while
	// the game runs and feeds the rule-engine template variables.
	Default Resolution `toml:"default_resolution"`
	Enabled Resolution `toml:"enabled_resolution"`

	// SwitchCommand is the external display tool invoked on a mode change,
	// with {width}, {height} and {refresh} placeholders in its arguments.
	// When empty, mode changes are only logged.
	SwitchCommand     string   `toml:"switch_command"`
	SwitchCommandArgs []string `toml:"switch_command_args"`

	Web struct {
		Enabled bool   `toml:"enabled"`
		Host    string `toml:"host"`
		Port    int    `toml:"port"`
	} `toml:"web"`

	Plugins struct {
		Enabled bool   `toml:"enabled"`
		Dir     string `toml:"dir"`
	} `toml:"plugins"`

	// BaseDir is the directory rule targets are resolved against.
	BaseDir string `toml:"base_dir"`

	// PollIntervalMS is the monitor polling interval in milliseconds.
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.LauncherProcess = "launcher"
	c.GameProcess = "game"
	c.Default = Resolution{Width: 1920, Height: 1080, Refresh: 60}
	c.Enabled = Resolution{Width: 1280, Height: 720, Refresh: 144}
	c.Web.Enabled = true
	c.Web.Host = "127.0.0.1"
	c.Web.Port = 8765
	c.Plugins.Enabled = true
	c.Plugins.Dir = "plugins"
	c.BaseDir = "."
	c.PollIntervalMS = 500
	return c
}

// Load reads configuration from path. A missing file yields the defaults
// without error; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.applyFallbacks()
	return cfg, nil
}

// applyFallbacks repairs values a hand-edited file may have zeroed.
func (c *Config) applyFallbacks() {
	d := Default()
	if c.Web.Host == "" {
		c.Web.Host = d.Web.Host
	}
	if c.Web.Port <= 0 {
		c.Web.Port = d.Web.Port
	}
	if c.Plugins.Dir == "" {
		c.Plugins.Dir = d.Plugins.Dir
	}
	if c.BaseDir == "" {
		c.BaseDir = d.BaseDir
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = d.PollIntervalMS
	}
}

// Store holds the live configuration and serves consistent snapshots.
// Readers never observe a partially applied reload.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore creates a store seeded with cfg.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Get returns the current configuration snapshot.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the configuration.
func (s *Store) Set(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// EnabledResolution returns the currently configured enabled-mode triple.
// The second result is false when the profile is unset.
func (s *Store) EnabledResolution() (Resolution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.Enabled.IsZero() {
		return Resolution{}, false
	}
	return s.cfg.Enabled, true
}

// SetDefaultResolution records the default profile, used at startup when
// the host captures the pre-launch display mode.
func (s *Store) SetDefaultResolution(r Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Default = r
}
