// SPDX-License-Identifier: MIT

// Package config loads the daemon configuration with the precedence
// ENV > YAML file > defaults, validates it, and supports hot reloading of
// the fields that are safe to change at runtime.
package config

import (
	"time"

	"github.com/atriumxr/atrium/internal/recovery"
)

// MemoryConfig tunes the memory monitor.
type MemoryConfig struct {
	CheckIntervalSec int     `yaml:"checkIntervalSec"`
	Threshold        float64 `yaml:"threshold"`
	BudgetMB         int     `yaml:"budgetMB"`
}

// JournalConfig tunes the badger-backed flight recorder.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// RedisConfig tunes the optional Redis event bridge.
type RedisConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Addr            string  `yaml:"addr"`
	Password        string  `yaml:"password"`
	DB              int     `yaml:"db"`
	ChannelPrefix   string  `yaml:"channelPrefix"`
	EventsPerSecond float64 `yaml:"eventsPerSecond"`
}

// TelemetryConfig tunes OTLP tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporterType"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// PolicyConfig overrides one error kind's recovery policy. Policies are
// applied at startup only.
type PolicyConfig struct {
	MaxRetries  int    `yaml:"maxRetries"`
	BaseDelayMs int    `yaml:"baseDelayMs"`
	Strategy    string `yaml:"strategy"`
	Fallback    string `yaml:"fallback"`
}

// Config is the full daemon configuration.
type Config struct {
	LogLevel        string                  `yaml:"logLevel"`
	ListenAddr      string                  `yaml:"listenAddr"`
	HistoryCapacity int                     `yaml:"historyCapacity"`
	Memory          MemoryConfig            `yaml:"memory"`
	Journal         JournalConfig           `yaml:"journal"`
	Redis           RedisConfig             `yaml:"redis"`
	Telemetry       TelemetryConfig         `yaml:"telemetry"`
	Policies        map[string]PolicyConfig `yaml:"policies"`

	// Version is injected by the loader, not read from file.
	Version string `yaml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel:        "info",
		ListenAddr:      ":8080",
		HistoryCapacity: 50,
		Memory: MemoryConfig{
			CheckIntervalSec: 30,
			Threshold:        0.9,
		},
		Redis: RedisConfig{
			ChannelPrefix:   "atrium.events",
			EventsPerSecond: 50,
		},
		Telemetry: TelemetryConfig{
			ExporterType: "http",
			SamplingRate: 0.1,
			Environment:  "development",
		},
	}
}

// MemoryInterval returns the monitor interval as a duration.
func (c Config) MemoryInterval() time.Duration {
	return time.Duration(c.Memory.CheckIntervalSec) * time.Second
}

// MemoryBudgetBytes returns the monitor budget in bytes (0 = unset).
func (c Config) MemoryBudgetBytes() uint64 {
	if c.Memory.BudgetMB <= 0 {
		return 0
	}
	return uint64(c.Memory.BudgetMB) << 20
}

// RecoveryPolicies converts the configured overrides into engine policies.
// Validate has already checked the names, so unknown entries are skipped.
func (c Config) RecoveryPolicies() map[recovery.ErrorKind]recovery.Policy {
	if len(c.Policies) == 0 {
		return nil
	}
	out := make(map[recovery.ErrorKind]recovery.Policy, len(c.Policies))
	defaults := recovery.DefaultPolicies()
	for name, pc := range c.Policies {
		kind, ok := recovery.ParseKind(name)
		if !ok {
			continue
		}
		p := defaults[kind]
		if pc.MaxRetries > 0 {
			p.MaxRetries = pc.MaxRetries
		}
		if pc.BaseDelayMs >= 0 {
			p.BaseDelay = time.Duration(pc.BaseDelayMs) * time.Millisecond
		}
		if pc.Strategy != "" {
			p.Strategy = recovery.Strategy(pc.Strategy)
		}
		if pc.Fallback != "" {
			p.Fallback = recovery.Fallback(pc.Fallback)
		}
		out[kind] = p
	}
	return out
}
