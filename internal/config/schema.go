package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version"`
	Backend  BackendConfig  `yaml:"backend"`
	Progress ProgressConfig `yaml:"progress"`
	Serve    ServeConfig    `yaml:"serve"`
}

// BackendConfig locates and authenticates against the merge backend.
// The password is never read from the file; it comes from the
// environment or a flag.
type BackendConfig struct {
	URL      string   `yaml:"url"`
	Host     string   `yaml:"host,omitempty"` // management host the backend logs into
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"-"`
	Timeout  Duration `yaml:"timeout"`
}

// ProgressConfig tunes the cosmetic progress signal
type ProgressConfig struct {
	Estimate Duration `yaml:"estimate"`
}

// ServeConfig holds settings of the local reference backend
type ServeConfig struct {
	Addr      string   `yaml:"addr"`
	Fixture   string   `yaml:"fixture,omitempty"`
	TaskDelay Duration `yaml:"task_delay"`
	Watch     bool     `yaml:"watch"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
