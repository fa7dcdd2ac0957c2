package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TOPOMERGE_BACKEND_URL
const EnvPrefix = "TOPOMERGE"

// Keys shared by the file, environment and flags
const (
	KeyBackendURL      = "backend.url"
	KeyBackendHost     = "backend.host"
	KeyBackendUsername = "backend.username"
	KeyBackendPassword = "backend.password"
	KeyBackendTimeout  = "backend.timeout"
	KeyEstimate        = "progress.estimate"
	KeyServeAddr       = "serve.addr"
	KeyServeFixture    = "serve.fixture"
	KeyServeTaskDelay  = "serve.task_delay"
	KeyServeWatch      = "serve.watch"
)

// NewViper seeds a viper instance with cfg as defaults and enables
// TOPOMERGE_* environment overrides. Flags are bound by the caller.
func NewViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyBackendURL, cfg.Backend.URL)
	v.SetDefault(KeyBackendHost, cfg.Backend.Host)
	v.SetDefault(KeyBackendUsername, cfg.Backend.Username)
	v.SetDefault(KeyBackendPassword, cfg.Backend.Password)
	v.SetDefault(KeyBackendTimeout, cfg.Backend.Timeout.Duration())
	v.SetDefault(KeyEstimate, cfg.Progress.Estimate.Duration())
	v.SetDefault(KeyServeAddr, cfg.Serve.Addr)
	v.SetDefault(KeyServeFixture, cfg.Serve.Fixture)
	v.SetDefault(KeyServeTaskDelay, cfg.Serve.TaskDelay.Duration())
	v.SetDefault(KeyServeWatch, cfg.Serve.Watch)
	return v
}

// FromViper resolves the effective configuration
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: 1,
		Backend: BackendConfig{
			URL:      v.GetString(KeyBackendURL),
			Host:     v.GetString(KeyBackendHost),
			Username: v.GetString(KeyBackendUsername),
			Password: v.GetString(KeyBackendPassword),
			Timeout:  Duration(v.GetDuration(KeyBackendTimeout)),
		},
		Progress: ProgressConfig{Estimate: Duration(v.GetDuration(KeyEstimate))},
		Serve: ServeConfig{
			Addr:      v.GetString(KeyServeAddr),
			Fixture:   v.GetString(KeyServeFixture),
			TaskDelay: Duration(v.GetDuration(KeyServeTaskDelay)),
			Watch:     v.GetBool(KeyServeWatch),
		},
	}
	cfg.applyDefaults()
	return cfg
}
