// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
)

// ParseString reads an environment variable with a default.
func ParseString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// ParseInt reads an integer environment variable with a default. Malformed
// values fall back to the default.
func ParseInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// ParseFloat reads a float environment variable with a default.
func ParseFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// ParseBool reads a boolean environment variable with a default.
func ParseBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// applyEnv overlays ATRIUM_* environment variables onto cfg. ENV has the
// highest precedence.
func applyEnv(cfg *Config) {
	cfg.LogLevel = ParseString("ATRIUM_LOG_LEVEL", cfg.LogLevel)
	cfg.ListenAddr = ParseString("ATRIUM_LISTEN", cfg.ListenAddr)
	cfg.HistoryCapacity = ParseInt("ATRIUM_HISTORY_CAPACITY", cfg.HistoryCapacity)

	cfg.Memory.CheckIntervalSec = ParseInt("ATRIUM_MEMORY_INTERVAL_SEC", cfg.Memory.CheckIntervalSec)
	cfg.Memory.Threshold = ParseFloat("ATRIUM_MEMORY_THRESHOLD", cfg.Memory.Threshold)
	cfg.Memory.BudgetMB = ParseInt("ATRIUM_MEMORY_BUDGET_MB", cfg.Memory.BudgetMB)

	cfg.Journal.Enabled = ParseBool("ATRIUM_JOURNAL_ENABLED", cfg.Journal.Enabled)
	cfg.Journal.Dir = ParseString("ATRIUM_JOURNAL_DIR", cfg.Journal.Dir)

	cfg.Redis.Enabled = ParseBool("ATRIUM_REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = ParseString("ATRIUM_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = ParseString("ATRIUM_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = ParseInt("ATRIUM_REDIS_DB", cfg.Redis.DB)
	cfg.Redis.ChannelPrefix = ParseString("ATRIUM_REDIS_CHANNEL_PREFIX", cfg.Redis.ChannelPrefix)
	cfg.Redis.EventsPerSecond = ParseFloat("ATRIUM_REDIS_EVENTS_PER_SEC", cfg.Redis.EventsPerSecond)

	cfg.Telemetry.Enabled = ParseBool("ATRIUM_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = ParseString("ATRIUM_OTEL_EXPORTER", cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = ParseString("ATRIUM_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat("ATRIUM_OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
	cfg.Telemetry.Environment = ParseString("ATRIUM_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
}
