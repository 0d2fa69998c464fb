package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cdispd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "cache_dir: /tmp/cache\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/cache", cfg.CacheDir)
	assert.Equal(t, "ncm-ncd", cfg.Dispatch.Program)
	assert.Equal(t, 60*time.Second, cfg.PollIntervalDuration())
	assert.True(t, cfg.AutoRegisterComponentPath())
	assert.True(t, cfg.AutoRegisterPackagePath())
	assert.Zero(t, cfg.DispatchTimeout())
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("CDISPD_TEST_CACHE", "/srv/profiles")
	path := writeConfig(t, "cache_dir: ${CDISPD_TEST_CACHE}\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/profiles", cfg.CacheDir)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
cache_dir: /var/lib/cdispd/cache
poll_interval: 2m
dry_run: true
auto_register:
  component_path: true
  package_path: false
dispatch:
  program: /usr/sbin/ncm-ncd
  retries: 3
  timeout: 45s
http:
  listen: "127.0.0.1:9360"
history:
  enabled: true
events:
  enabled: true
  url: nats://localhost:4222
fetch_retry:
  mode: exponential
  initial: 2s
  max: 1m
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.PollIntervalDuration())
	assert.True(t, cfg.DryRun)
	assert.False(t, cfg.AutoRegisterPackagePath())
	assert.Equal(t, 45*time.Second, cfg.DispatchTimeout())
	assert.Equal(t, "/var/lib/cdispd/data/history.db", cfg.History.Path)
	assert.Equal(t, "cdispd.cycles", cfg.Events.Subject)

	pol := cfg.FetchRetryPolicy()
	assert.Equal(t, 2*time.Second, pol.Initial)
	assert.Equal(t, time.Minute, pol.Max)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"bad interval":       func(c *Config) { c.PollInterval = "soon" },
		"too short interval": func(c *Config) { c.PollInterval = "100ms" },
		"no program":         func(c *Config) { c.Dispatch.Program = "" },
		"negative retries":   func(c *Config) { c.Dispatch.Retries = -1 },
		"bad timeout":        func(c *Config) { c.Dispatch.Timeout = "later" },
		"bad retry mode":     func(c *Config) { c.FetchRetry.Mode = "quadratic" },
		"bad retry initial":  func(c *Config) { c.FetchRetry.Initial = "often" },
		"events without url": func(c *Config) { c.Events.Enabled = true },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
