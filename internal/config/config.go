package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appDir   = "proton-patch-helper"
	fileName = "config.yaml"
)

// Version selection policies.
const (
	PolicyFirst  = "first"
	PolicyNewest = "newest"
)

// Config holds the optional overrides read from config.yaml. The zero value of
// every field means "use the default".
type Config struct {
	SteamRoot      string `yaml:"steam_root"`      // fixed Steam directory; empty probes the usual locations
	ToolsDir       string `yaml:"tools_dir"`       // subdirectory holding compatibility tools
	VersionMarker  string `yaml:"version_marker"`  // substring a tool folder must contain
	BinaryPath     string `yaml:"binary_path"`     // binary path relative to the tool folder
	VersionPolicy  string `yaml:"version_policy"`  // first or newest
	OutputEncoding string `yaml:"output_encoding"` // WHATWG encoding label for child output
	CancelGrace    string `yaml:"cancel_grace"`    // time between interrupt and kill
	Debug          bool   `yaml:"debug"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ToolsDir:       "compatibilitytools.d",
		VersionMarker:  "Proton",
		BinaryPath:     filepath.Join("files", "bin", "wine"),
		VersionPolicy:  PolicyFirst,
		OutputEncoding: "utf-8",
		CancelGrace:    "5s",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/proton-patch-helper/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, fileName), nil
}

// Load reads the default config file. A missing file yields defaults.
func Load() (*Config, error) {
	p, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFile(p)
}

// LoadFile reads path and merges it over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw Config
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.merge(&raw)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) merge(o *Config) {
	if o.SteamRoot != "" {
		c.SteamRoot = o.SteamRoot
	}
	if o.ToolsDir != "" {
		c.ToolsDir = o.ToolsDir
	}
	if o.VersionMarker != "" {
		c.VersionMarker = o.VersionMarker
	}
	if o.BinaryPath != "" {
		c.BinaryPath = o.BinaryPath
	}
	if o.VersionPolicy != "" {
		c.VersionPolicy = o.VersionPolicy
	}
	if o.OutputEncoding != "" {
		c.OutputEncoding = o.OutputEncoding
	}
	if o.CancelGrace != "" {
		c.CancelGrace = o.CancelGrace
	}
	c.Debug = c.Debug || o.Debug
}

// Validate rejects values the rest of the program cannot use.
func (c *Config) Validate() error {
	switch c.VersionPolicy {
	case PolicyFirst, PolicyNewest:
	default:
		return fmt.Errorf("version_policy must be %q or %q, got %q", PolicyFirst, PolicyNewest, c.VersionPolicy)
	}
	if filepath.IsAbs(c.BinaryPath) {
		return fmt.Errorf("binary_path must be relative, got %q", c.BinaryPath)
	}
	if _, err := c.Grace(); err != nil {
		return err
	}
	return nil
}

// Grace parses CancelGrace.
func (c *Config) Grace() (time.Duration, error) {
	d, err := time.ParseDuration(c.CancelGrace)
	if err != nil {
		return 0, fmt.Errorf("cancel_grace: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("cancel_grace must not be negative, got %s", d)
	}
	return d, nil
}
