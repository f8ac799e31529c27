// Package config assembles snapdeck settings from defaults, an optional YAML
// file and the environment. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/root4loot/snapdeck"
	"github.com/root4loot/snapdeck/pkg/resolver"
	"github.com/root4loot/snapdeck/pkg/screener"
	"gopkg.in/yaml.v3"
)

// AppName names the XDG directories.
const AppName = "snapdeck"

// DefaultConfigFile is looked up in the XDG config directory.
const DefaultConfigFile = "config.yaml"

// Environment variables that override file settings.
const (
	EnvConcurrency    = "SNAPDECK_CONCURRENCY"
	EnvOutputDir      = "SNAPDECK_OUTDIR"
	EnvBrowserBin     = "SNAPDECK_BROWSER_BIN"
	EnvAssetfinderBin = "SNAPDECK_ASSETFINDER_BIN"
)

// ErrConfigNotFound is returned when an explicitly requested file is missing.
var ErrConfigNotFound = errors.New("configuration file not found")

// Config holds every setting of a run.
type Config struct {
	snapdeck.Options `yaml:",inline"`

	Resolver ResolverConfig `yaml:"resolver"`
	History  HistoryConfig  `yaml:"history"`

	Report      bool `yaml:"report"`        // write a Markdown summary next to the document
	FailOnEmpty bool `yaml:"fail_on_empty"` // exit non-zero when nothing was captured
}

// ResolverConfig selects the subdomain resolver.
type ResolverConfig struct {
	Kind       string `yaml:"kind"`       // assetfinder or dns
	Bin        string `yaml:"bin"`        // assetfinder binary
	Nameserver string `yaml:"nameserver"` // host:port for the dns resolver
	Wordlist   string `yaml:"wordlist"`   // file with one label per line
}

// HistoryConfig controls the run ledger.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Options: *snapdeck.DefaultOptions(),
		Resolver: ResolverConfig{
			Kind:       resolver.KindAssetfinder,
			Nameserver: resolver.DefaultNameserver,
		},
		History: HistoryConfig{
			Dir: DataDir(),
		},
	}
}

// DataDir returns the XDG data directory, e.g. ~/.local/share/snapdeck.
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// ConfigDir returns the XDG config directory, e.g. ~/.config/snapdeck.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// FindConfigFile returns path if given and present, otherwise the default
// file in ConfigDir when it exists, otherwise "".
func FindConfigFile(path string) string {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}

	candidate := filepath.Join(ConfigDir(), DefaultConfigFile)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

// Load builds a Config from the defaults, the configuration file and the
// environment, in that order. An explicit path that does not exist yields
// ErrConfigNotFound; a missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	found := FindConfigFile(path)
	if path != "" && found == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	if found != "" {
		if err := cfg.loadFile(found); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from SNAPDECK_* variables.
func (c *Config) ApplyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvConcurrency)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		c.Concurrency = n
	}

	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}

	if v := os.Getenv(EnvBrowserBin); v != "" {
		c.Capture.BrowserBin = v
	}

	if v := os.Getenv(EnvAssetfinderBin); v != "" {
		c.Resolver.Bin = v
	}

	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}

	if c.Capture.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", c.Capture.Timeout)
	}

	if c.DuplicateThreshold < 1 || c.DuplicateThreshold > 100 {
		return fmt.Errorf("duplicate threshold must be between 1 and 100, got %d", c.DuplicateThreshold)
	}

	if c.OutputDir == "" {
		return errors.New("output directory must not be empty")
	}

	switch c.Capture.Engine {
	case screener.EngineRod, screener.EngineChromedp:
	default:
		return fmt.Errorf("unknown capture engine %q", c.Capture.Engine)
	}

	switch c.Resolver.Kind {
	case resolver.KindAssetfinder, resolver.KindDNS:
	default:
		return fmt.Errorf("unknown resolver %q", c.Resolver.Kind)
	}

	return nil
}

// ResolverSettings returns the resolver settings, reading the wordlist if one
// is configured.
func (c *Config) ResolverSettings() (resolver.Config, error) {
	rc := resolver.Config{
		Kind:       c.Resolver.Kind,
		Bin:        c.Resolver.Bin,
		Nameserver: c.Resolver.Nameserver,
	}

	if c.Resolver.Wordlist != "" {
		data, err := os.ReadFile(c.Resolver.Wordlist)
		if err != nil {
			return rc, fmt.Errorf("reading wordlist: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, "#") {
				rc.Words = append(rc.Words, line)
			}
		}
	}

	return rc, nil
}
