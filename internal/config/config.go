// Package config provides configuration management for topomerge.
//
// Settings come from a YAML file, then TOPOMERGE_* environment variables
// and command line flags layered on top through viper.
//
// Config file locations (priority order):
//  1. $TOPOMERGE_CONFIG
//  2. ./topomerge.yaml
//  3. $XDG_CONFIG_HOME/topomerge/config.yaml
//  4. ~/.config/topomerge/config.yaml
//  5. /etc/topomerge/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBackendURL = "http://localhost:8000"
	DefaultTimeout    = 3 * time.Minute
	DefaultEstimate   = 5 * time.Second
	DefaultServeAddr  = ":8000"
	DefaultTaskDelay  = 2 * time.Second
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{Serve: ServeConfig{Watch: true}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Backend: BackendConfig{
			URL:     DefaultBackendURL,
			Timeout: Duration(DefaultTimeout),
		},
		Progress: ProgressConfig{Estimate: Duration(DefaultEstimate)},
		Serve: ServeConfig{
			Addr:      DefaultServeAddr,
			TaskDelay: Duration(DefaultTaskDelay),
			Watch:     true,
		},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Backend.URL == "" {
		c.Backend.URL = DefaultBackendURL
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = Duration(DefaultTimeout)
	}
	if c.Progress.Estimate <= 0 {
		c.Progress.Estimate = Duration(DefaultEstimate)
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultServeAddr
	}
	if c.Serve.TaskDelay < 0 {
		c.Serve.TaskDelay = 0
	}
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Backend: %s (timeout %s)\n", c.Backend.URL, c.Backend.Timeout.Duration())
	if c.Backend.Host != "" {
		summary += fmt.Sprintf("Login: %s@%s\n", c.Backend.Username, c.Backend.Host)
	}
	summary += fmt.Sprintf("Progress estimate: %s\n", c.Progress.Estimate.Duration())
	summary += fmt.Sprintf("Serve: %s, task delay %s, watch %v", c.Serve.Addr, c.Serve.TaskDelay.Duration(), c.Serve.Watch)
	if c.Serve.Fixture != "" {
		summary += fmt.Sprintf(", fixture %s", c.Serve.Fixture)
	}

	return summary
}
