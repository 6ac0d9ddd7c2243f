// Package config handles configuration for cyborg.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by WithDefaults.
const (
	DefaultViewServerPort    = 4939
	DefaultWindowListTimeout = 5 * time.Second
	DefaultDumpTimeout       = 20 * time.Second
	DefaultConcurrency       = 10
	DefaultSettleDelay       = 300 * time.Millisecond
)

// Config represents the workspace configuration (cyborg.yaml).
type Config struct {
	// Device settings
	Device         string `yaml:"device"`         // adb serial; empty picks the only attached device
	ADBPath        string `yaml:"adbPath"`        // explicit adb binary
	ViewServerPort int    `yaml:"viewServerPort"` // on-device view server port
	LocalPort      int    `yaml:"localPort"`      // forwarded host port, 0 picks a free one

	// Snapshot settings
	WindowListTimeout time.Duration `yaml:"windowListTimeout"`
	DumpTimeout       time.Duration `yaml:"dumpTimeout"`
	Concurrency       int           `yaml:"concurrency"`

	// Interaction
	SettleDelay time.Duration `yaml:"settleDelay"` // wait after a tap or key press

	Display Display `yaml:"display"` // overrides the size reported by the device

	// Output
	ArchiveDir string `yaml:"archiveDir"`
	Output     string `yaml:"output"` // report directory for suite runs
}

// Display is a screen size in device pixels. Zero means "ask the device".
type Display struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// WithDefaults returns a copy of c with zero fields set to their defaults.
func (c Config) WithDefaults() Config {
	if c.ViewServerPort == 0 {
		c.ViewServerPort = DefaultViewServerPort
	}
	if c.WindowListTimeout == 0 {
		c.WindowListTimeout = DefaultWindowListTimeout
	}
	if c.DumpTimeout == 0 {
		c.DumpTimeout = DefaultDumpTimeout
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.ArchiveDir == "" {
		c.ArchiveDir = GetArchiveDir()
	}
	return c
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	switch {
	case c.ViewServerPort < 0 || c.ViewServerPort > 65535:
		return fmt.Errorf("viewServerPort %d out of range", c.ViewServerPort)
	case c.LocalPort < 0 || c.LocalPort > 65535:
		return fmt.Errorf("localPort %d out of range", c.LocalPort)
	case c.Concurrency < 0:
		return fmt.Errorf("concurrency must not be negative")
	case c.WindowListTimeout < 0 || c.DumpTimeout < 0 || c.SettleDelay < 0:
		return fmt.Errorf("durations must not be negative")
	case c.Display.Width < 0 || c.Display.Height < 0:
		return fmt.Errorf("display size must not be negative")
	case (c.Display.Width == 0) != (c.Display.Height == 0):
		return fmt.Errorf("display width and height must be set together")
	}
	return nil
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &cfg, nil
}

// LoadFromDir looks for cyborg.yaml or cyborg.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"cyborg.yaml", "cyborg.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return empty config
	return &Config{}, nil
}
