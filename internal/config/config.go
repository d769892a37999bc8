// Package config holds marcer's file-based configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "marcer.yaml"

// Config is the top-level configuration.
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Logging LoggingConfig `yaml:"logging"`
}

// RunConfig seeds the switches an instruction file can also set with var.
type RunConfig struct {
	Strict             bool   `yaml:"strict"`
	Debug              bool   `yaml:"debug"`
	OutputModifiedOnly bool   `yaml:"output_modified_only"`
	MARCFile           string `yaml:"marc_file"`
}

// FetchConfig configures the page fetcher used by URL tests.
type FetchConfig struct {
	Timeout      string `yaml:"timeout"` // duration string, e.g. "30s"
	UserAgent    string `yaml:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			Timeout:      "30s",
			UserAgent:    "marcer/1.0 (URL checker)",
			MaxBodyBytes: 2 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a config file. A missing file yields the defaults.
// Environment overrides are applied and the result validated in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v, ok := envBool("MARCER_STRICT"); ok {
		c.Run.Strict = v
	}
	if v, ok := envBool("MARCER_DEBUG"); ok {
		c.Run.Debug = v
	}
	if path := os.Getenv("MARCER_MARC_FILE"); path != "" {
		c.Run.MARCFile = path
	}
	if timeout := os.Getenv("MARCER_FETCH_TIMEOUT"); timeout != "" {
		c.Fetch.Timeout = timeout
	}
}

func envBool(key string) (bool, bool) {
	s := os.Getenv(key)
	if s == "" {
		return false, false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, false
	}
	return v, true
}

// FetchTimeout returns the per-request fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Fetch.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Fetch.Timeout != "" {
		d, err := time.ParseDuration(c.Fetch.Timeout)
		if err != nil {
			return fmt.Errorf("invalid fetch.timeout %q: %w", c.Fetch.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("fetch.timeout must be positive, got %s", d)
		}
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("fetch.max_body_bytes must not be negative")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
	return nil
}
