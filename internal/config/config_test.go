// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumxr/atrium/internal/recovery"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 50, cfg.HistoryCapacity)
	assert.Equal(t, 30*time.Second, cfg.MemoryInterval())
	assert.Equal(t, 0.9, cfg.Memory.Threshold)
	assert.Zero(t, cfg.MemoryBudgetBytes())
	assert.False(t, cfg.Journal.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadEnvOnly(t *testing.T) {
	t.Setenv("ATRIUM_LOG_LEVEL", "debug")
	t.Setenv("ATRIUM_LISTEN", ":9999")
	t.Setenv("ATRIUM_HISTORY_CAPACITY", "10")
	t.Setenv("ATRIUM_MEMORY_THRESHOLD", "0.75")
	t.Setenv("ATRIUM_MEMORY_BUDGET_MB", "512")

	cfg, err := NewLoader("", "v-test").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 10, cfg.HistoryCapacity)
	assert.Equal(t, 0.75, cfg.Memory.Threshold)
	assert.Equal(t, uint64(512)<<20, cfg.MemoryBudgetBytes())
	assert.Equal(t, "v-test", cfg.Version)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
logLevel: warn
listenAddr: ":7070"
historyCapacity: 25
memory:
  checkIntervalSec: 5
  threshold: 0.8
journal:
  enabled: true
  dir: /tmp/atrium-journal
policies:
  NetworkError:
    maxRetries: 6
    baseDelayMs: 250
    strategy: ExponentialBackoff
    fallback: OfflineMode
`)

	cfg, err := NewLoader(path, "v-test").Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, 25, cfg.HistoryCapacity)
	assert.Equal(t, 5*time.Second, cfg.MemoryInterval())
	assert.True(t, cfg.Journal.Enabled)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "atrium.events", cfg.Redis.ChannelPrefix)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "logLevel: warn\n")
	t.Setenv("ATRIUM_LOG_LEVEL", "trace")

	cfg, err := NewLoader(path, "v-test").Load()
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"), "v").Load()
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "logLevel: [not, a, string\n")
	_, err := NewLoader(path, "v").Load()
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"zero history capacity", func(c *Config) { c.HistoryCapacity = 0 }},
		{"zero memory interval", func(c *Config) { c.Memory.CheckIntervalSec = 0 }},
		{"threshold too high", func(c *Config) { c.Memory.Threshold = 1.5 }},
		{"negative budget", func(c *Config) { c.Memory.BudgetMB = -1 }},
		{"journal without dir", func(c *Config) { c.Journal.Enabled = true }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }},
		{"telemetry bad exporter", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.ExporterType = "udp"
			c.Telemetry.Endpoint = "localhost:4317"
		}},
		{"telemetry without endpoint", func(c *Config) {
			c.Telemetry.Enabled = true
		}},
		{"unknown policy kind", func(c *Config) {
			c.Policies = map[string]PolicyConfig{"Meltdown": {}}
		}},
		{"unknown strategy", func(c *Config) {
			c.Policies = map[string]PolicyConfig{"NetworkError": {Strategy: "Pray"}}
		}},
		{"unknown fallback", func(c *Config) {
			c.Policies = map[string]PolicyConfig{"NetworkError": {Fallback: "Reboot"}}
		}},
		{"negative retries", func(c *Config) {
			c.Policies = map[string]PolicyConfig{"NetworkError": {MaxRetries: -1}}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestRecoveryPoliciesOverlayDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.Policies = map[string]PolicyConfig{
		"NetworkError": {MaxRetries: 6, BaseDelayMs: 250},
	}

	policies := cfg.RecoveryPolicies()
	require.Len(t, policies, 1)

	want := recovery.DefaultPolicies()[recovery.KindNetworkError]
	want.MaxRetries = 6
	want.BaseDelay = 250 * time.Millisecond
	if diff := cmp.Diff(want, policies[recovery.KindNetworkError]); diff != "" {
		t.Errorf("policy mismatch (-want +got):\n%s", diff)
	}
}

func TestRecoveryPoliciesEmpty(t *testing.T) {
	assert.Nil(t, Defaults().RecoveryPolicies())
}

func TestParseHelpers(t *testing.T) {
	t.Setenv("ATRIUM_TEST_STR", "  hello  ")
	t.Setenv("ATRIUM_TEST_INT", "42")
	t.Setenv("ATRIUM_TEST_BAD_INT", "many")
	t.Setenv("ATRIUM_TEST_FLOAT", "0.5")
	t.Setenv("ATRIUM_TEST_BOOL", "true")

	assert.Equal(t, "hello", ParseString("ATRIUM_TEST_STR", "def"))
	assert.Equal(t, "def", ParseString("ATRIUM_TEST_UNSET", "def"))
	assert.Equal(t, 42, ParseInt("ATRIUM_TEST_INT", 7))
	assert.Equal(t, 7, ParseInt("ATRIUM_TEST_BAD_INT", 7))
	assert.Equal(t, 0.5, ParseFloat("ATRIUM_TEST_FLOAT", 0.1))
	assert.True(t, ParseBool("ATRIUM_TEST_BOOL", false))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "atrium.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
