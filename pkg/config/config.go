// Package config loads dv's project configuration from .dv/config.yaml,
// .env files and DV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Dir is the per-project directory holding dv's files.
const Dir = ".dv"

// FileName is the config file inside Dir.
const FileName = "config.yaml"

// Environment overrides.
const (
	EnvPayload   = "DV_PAYLOAD"
	EnvAtlas     = "DV_ATLAS"
	EnvServeAddr = "DV_SERVE_ADDR"
	EnvForcePoll = "DV_FORCE_POLL"
)

// Config is the contents of .dv/config.yaml.
type Config struct {
	// Payload is the default results payload (relative to the project root)
	Payload string `yaml:"payload,omitempty"`

	Tree      TreeConfig      `yaml:"tree,omitempty"`
	Map       MapConfig       `yaml:"map,omitempty"`
	Watch     WatchConfig     `yaml:"watch,omitempty"`
	Serve     ServeConfig     `yaml:"serve,omitempty"`
	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`

	// Root is the directory containing .dv; empty for defaults.
	Root string `yaml:"-"`
}

// TreeConfig tunes tree layout.
type TreeConfig struct {
	Width       float64 `yaml:"width,omitempty"`
	LeafSpacing float64 `yaml:"leaf_spacing,omitempty"`
	Separation  float64 `yaml:"separation,omitempty"`
	HideTitle   bool    `yaml:"hide_title,omitempty"`
}

// MapConfig selects the region atlas and canvas size.
type MapConfig struct {
	// Atlas is a GeoJSON FeatureCollection; empty uses the embedded atlas
	Atlas   string  `yaml:"atlas,omitempty"`
	CodeKey string  `yaml:"code_key,omitempty"`
	NameKey string  `yaml:"name_key,omitempty"`
	Width   float64 `yaml:"width,omitempty"`
	Height  float64 `yaml:"height,omitempty"`
}

// WatchConfig controls payload watching in the TUI and preview server.
type WatchConfig struct {
	Enabled      *bool         `yaml:"enabled,omitempty"`
	Debounce     time.Duration `yaml:"debounce,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	ForcePoll    bool          `yaml:"force_poll,omitempty"`
}

// ServeConfig configures the preview server.
type ServeConfig struct {
	Addr       string `yaml:"addr,omitempty"`
	LiveReload *bool  `yaml:"live_reload,omitempty"`
}

// DiscoveryConfig controls payload discovery.
type DiscoveryConfig struct {
	// Patterns are doublestar globs relative to the project root
	Patterns []string `yaml:"patterns,omitempty"`
	// Exclude patterns skip matching files and directories
	Exclude  []string `yaml:"exclude,omitempty"`
	MaxDepth int      `yaml:"max_depth,omitempty"`
}

// Defaults.
const (
	DefaultServeAddr    = "127.0.0.1:8765"
	DefaultMaxDepth     = 4
	DefaultDebounce     = 200 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
)

// DefaultDiscoveryPatterns returns the patterns used when none are configured.
func DefaultDiscoveryPatterns() []string {
	return []string{
		"*.json",
		"**/results*.json",
		"**/*.dplace.json",
	}
}

// DefaultExcludePatterns returns directories skipped during discovery.
func DefaultExcludePatterns() []string {
	return []string{
		"node_modules",
		"vendor",
		".git",
		Dir,
		"dist",
		"build",
	}
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultServeAddr
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = DefaultDebounce
	}
	if c.Watch.PollInterval == 0 {
		c.Watch.PollInterval = DefaultPollInterval
	}
	if len(c.Discovery.Patterns) == 0 {
		c.Discovery.Patterns = DefaultDiscoveryPatterns()
	}
	if len(c.Discovery.Exclude) == 0 {
		c.Discovery.Exclude = DefaultExcludePatterns()
	}
	if c.Discovery.MaxDepth == 0 {
		c.Discovery.MaxDepth = DefaultMaxDepth
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Tree.Width < 0 || c.Tree.LeafSpacing < 0 || c.Tree.Separation < 0 {
		return fmt.Errorf("tree: sizes cannot be negative")
	}
	if c.Map.Width < 0 || c.Map.Height < 0 {
		return fmt.Errorf("map: sizes cannot be negative")
	}
	if c.Watch.Debounce < 0 || c.Watch.PollInterval < 0 {
		return fmt.Errorf("watch: durations cannot be negative")
	}
	if c.Discovery.MaxDepth < 0 {
		return fmt.Errorf("discovery: max_depth cannot be negative")
	}
	for i, p := range c.Discovery.Patterns {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("discovery: pattern[%d] is empty", i)
		}
		if !validPattern(p) {
			return fmt.Errorf("discovery: pattern[%d] %q is not a valid glob", i, p)
		}
	}
	return nil
}

// WatchEnabled reports whether payload watching is on (default true).
func (c *Config) WatchEnabled() bool {
	return c.Watch.Enabled == nil || *c.Watch.Enabled
}

// LiveReloadEnabled reports whether the preview server reloads browsers
// (default true).
func (c *Config) LiveReloadEnabled() bool {
	return c.Serve.LiveReload == nil || *c.Serve.LiveReload
}

// Resolve makes a config-relative path absolute. Empty stays empty.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.Root == "" {
		return path
	}
	return filepath.Join(c.Root, path)
}

// PayloadPath returns the resolved default payload path.
func (c *Config) PayloadPath() string {
	return c.Resolve(c.Payload)
}

// AtlasPath returns the resolved atlas path, empty for the embedded atlas.
func (c *Config) AtlasPath() string {
	return c.Resolve(c.Map.Atlas)
}

// Load reads a config file, applies defaults and validates it. Root is set
// to the directory containing the .dv directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)
	if filepath.Base(dir) == Dir {
		dir = filepath.Dir(dir)
	}
	config.Root = dir
	return &config, nil
}

// Find searches for .dv/config.yaml starting from dir and walking up. It
// stops at the home directory.
func Find(dir string) (string, error) {
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	home, _ := os.UserHomeDir()

	for {
		candidate := filepath.Join(dir, Dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir || (home != "" && dir == home) {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// Discover loads the config for the working directory: the explicit path
// when given, otherwise the nearest .dv/config.yaml, otherwise defaults.
// A .env file next to the project root is loaded first, without replacing
// variables already set, and DV_* overrides are applied last.
func Discover(explicit string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch {
	case explicit != "":
		if cfg, err = Load(explicit); err != nil {
			return nil, err
		}
	default:
		path, findErr := Find("")
		switch {
		case findErr == nil:
			if cfg, err = Load(path); err != nil {
				return nil, err
			}
		case errors.Is(findErr, os.ErrNotExist):
			d := DefaultConfig()
			d.Root, _ = os.Getwd()
			cfg = &d
		default:
			return nil, findErr
		}
	}

	if err := LoadDotEnv(cfg.Root); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads dir/.env if present. Existing variables win.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies DV_* overrides.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvPayload); v != "" {
		c.Payload = v
	}
	if v := os.Getenv(EnvAtlas); v != "" {
		c.Map.Atlas = v
	}
	if v := os.Getenv(EnvServeAddr); v != "" {
		c.Serve.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvForcePoll)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvForcePoll, err)
		}
		c.Watch.ForcePoll = b
	}
	return nil
}

// ExampleConfig returns a commented-by-example configuration for dv init.
func ExampleConfig() Config {
	c := DefaultConfig()
	c.Payload = "results.json"
	c.Tree = TreeConfig{Width: 700, LeafSpacing: 18, Separation: 8}
	c.Map = MapConfig{Width: 1140, Height: 480, CodeKey: "code", NameKey: "name"}
	return c
}

// Write saves c as root/.dv/config.yaml and makes sure .dv/ is git-ignored.
// An existing config is never overwritten.
func Write(root string, c Config) (string, error) {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	if err := EnsureIgnored(root); err != nil {
		return path, fmt.Errorf("updating .gitignore: %w", err)
	}
	return path, nil
}
