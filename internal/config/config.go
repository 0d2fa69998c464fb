// Package config loads and validates the daemon configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	cerr "git.home.luguber.info/inful/cdispd/internal/errors"
	"git.home.luguber.info/inful/cdispd/internal/retry"
)

// Config is the application configuration. Durations are strings in the YAML
// ("60s", "2m") and parsed during validation.
type Config struct {
	// CacheDir holds the profile cache maintained by the fetch tooling.
	CacheDir string `yaml:"cache_dir"`
	// DataDir holds daemon-owned state: pivot file, history database.
	DataDir string `yaml:"data_dir"`
	// StateDir holds the per-component state markers.
	StateDir string `yaml:"state_dir"`
	// Node is an optional node name attached to published events.
	Node string `yaml:"node,omitempty"`

	PollInterval string `yaml:"poll_interval"`
	DryRun       bool   `yaml:"dry_run"`

	AutoRegister AutoRegisterConfig `yaml:"auto_register"`
	Dispatch     DispatchConfig     `yaml:"dispatch"`
	HTTP         HTTPConfig         `yaml:"http"`
	History      HistoryConfig      `yaml:"history"`
	Events       EventsConfig       `yaml:"events"`
	FetchRetry   FetchRetryConfig   `yaml:"fetch_retry"`
}

// AutoRegisterConfig toggles the implicit subscriptions added for every
// component.
type AutoRegisterConfig struct {
	ComponentPath *bool `yaml:"component_path,omitempty"`
	PackagePath   *bool `yaml:"package_path,omitempty"`
}

// DispatchConfig describes the external reconfiguration program and its
// pass-through options.
type DispatchConfig struct {
	Program string `yaml:"program"`
	Retries int    `yaml:"retries,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

// HTTPConfig configures the status/metrics listener. An empty listen address
// disables the server.
type HTTPConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// HistoryConfig configures the cycle history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // defaults to <data_dir>/history.db
}

// EventsConfig configures the optional NATS cycle event publisher.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// FetchRetryConfig configures the backoff applied when the profile cache is
// temporarily unreadable.
type FetchRetryConfig struct {
	Mode    string `yaml:"mode,omitempty"` // fixed|linear|exponential
	Initial string `yaml:"initial,omitempty"`
	Max     string `yaml:"max,omitempty"`
}

// Load reads the configuration file, expanding ${VAR} references from the
// process environment (optionally seeded from a .env file).
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, cerr.Wrap(err, cerr.CategoryConfig, cerr.SeverityFatal, "cannot read configuration file").
			WithContext("path", configPath)
	}

	expanded := os.ExpandEnv(string(data))
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, cerr.Wrap(err, cerr.CategoryConfig, cerr.SeverityFatal, "cannot parse configuration file").
			WithContext("path", configPath)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with built-in values.
func (c *Config) ApplyDefaults() {
	if c.CacheDir == "" {
		c.CacheDir = "/var/lib/cdispd/cache"
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/cdispd/data"
	}
	if c.StateDir == "" {
		c.StateDir = "/var/run/cdispd"
	}
	if c.PollInterval == "" {
		c.PollInterval = "60s"
	}
	if c.Dispatch.Program == "" {
		c.Dispatch.Program = "ncm-ncd"
	}
	if c.History.Enabled && c.History.Path == "" {
		c.History.Path = c.DataDir + "/history.db"
	}
	if c.Events.Enabled && c.Events.Subject == "" {
		c.Events.Subject = "cdispd.cycles"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	interval, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return cerr.Wrap(err, cerr.CategoryValidation, cerr.SeverityFatal, "invalid poll_interval")
	}
	if interval < time.Second {
		return cerr.Newf(cerr.CategoryValidation, cerr.SeverityFatal, "poll_interval %s is below 1s", c.PollInterval)
	}
	if c.Dispatch.Program == "" {
		return cerr.New(cerr.CategoryValidation, cerr.SeverityFatal, "dispatch.program is required")
	}
	if c.Dispatch.Retries < 0 {
		return cerr.New(cerr.CategoryValidation, cerr.SeverityFatal, "dispatch.retries must not be negative")
	}
	if c.Dispatch.Timeout != "" {
		if _, err := time.ParseDuration(c.Dispatch.Timeout); err != nil {
			return cerr.Wrap(err, cerr.CategoryValidation, cerr.SeverityFatal, "invalid dispatch.timeout")
		}
	}
	if !retry.ValidMode(c.FetchRetry.Mode) {
		return cerr.Newf(cerr.CategoryValidation, cerr.SeverityFatal, "unknown fetch_retry.mode %q", c.FetchRetry.Mode)
	}
	for name, raw := range map[string]string{"fetch_retry.initial": c.FetchRetry.Initial, "fetch_retry.max": c.FetchRetry.Max} {
		if raw == "" {
			continue
		}
		if _, err := time.ParseDuration(raw); err != nil {
			return cerr.Wrap(err, cerr.CategoryValidation, cerr.SeverityFatal, fmt.Sprintf("invalid %s", name))
		}
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return cerr.New(cerr.CategoryValidation, cerr.SeverityFatal, "events.url is required when events are enabled")
	}
	return nil
}

// PollIntervalDuration returns the parsed poll interval. Call after Validate.
func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// DispatchTimeout returns the parsed invocation timeout, zero when unset.
func (c *Config) DispatchTimeout() time.Duration {
	if c.Dispatch.Timeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Dispatch.Timeout)
	return d
}

// FetchRetryPolicy builds the backoff policy for profile fetch failures.
func (c *Config) FetchRetryPolicy() retry.Policy {
	var initial, max time.Duration
	if c.FetchRetry.Initial != "" {
		initial, _ = time.ParseDuration(c.FetchRetry.Initial)
	}
	if c.FetchRetry.Max != "" {
		max, _ = time.ParseDuration(c.FetchRetry.Max)
	}
	return retry.NewPolicy(retry.BackoffMode(c.FetchRetry.Mode), initial, max)
}

// AutoRegisterComponentPath reports whether components are implicitly
// subscribed to their own configuration subtree (default true).
func (c *Config) AutoRegisterComponentPath() bool {
	if c.AutoRegister.ComponentPath == nil {
		return true
	}
	return *c.AutoRegister.ComponentPath
}

// AutoRegisterPackagePath reports whether components are implicitly
// subscribed to their package path (default true).
func (c *Config) AutoRegisterPackagePath() bool {
	if c.AutoRegister.PackagePath == nil {
		return true
	}
	return *c.AutoRegister.PackagePath
}
