// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/atriumxr/atrium/internal/recovery"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

var validStrategies = map[string]struct{}{
	string(recovery.StrategyExponentialBackoff): {},
	string(recovery.StrategyFullReinit):         {},
	string(recovery.StrategyGracefulExit):       {},
	string(recovery.StrategyReduceQuality):      {},
	string(recovery.StrategyReinitAudio):        {},
	string(recovery.StrategyLogAndContinue):     {},
}

var validFallbacks = map[string]struct{}{
	string(recovery.FallbackShowErrorScreen):  {},
	string(recovery.FallbackUsePlaceholder):   {},
	string(recovery.FallbackContinueDegraded): {},
	string(recovery.FallbackEmergencyCleanup): {},
	string(recovery.FallbackDisableAudio):     {},
	string(recovery.FallbackOfflineMode):      {},
}

// Validate checks a loaded configuration. Either the full config is valid or
// an error describing the first offending field is returned.
func Validate(cfg Config) error {
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return invalid("logLevel %q is not a zerolog level", cfg.LogLevel)
	}
	if cfg.ListenAddr == "" {
		return invalid("listenAddr must not be empty")
	}
	if cfg.HistoryCapacity <= 0 {
		return invalid("historyCapacity must be positive, got %d", cfg.HistoryCapacity)
	}
	if cfg.Memory.CheckIntervalSec <= 0 {
		return invalid("memory.checkIntervalSec must be positive, got %d", cfg.Memory.CheckIntervalSec)
	}
	if cfg.Memory.Threshold <= 0 || cfg.Memory.Threshold > 1 {
		return invalid("memory.threshold must be in (0, 1], got %g", cfg.Memory.Threshold)
	}
	if cfg.Memory.BudgetMB < 0 {
		return invalid("memory.budgetMB must not be negative, got %d", cfg.Memory.BudgetMB)
	}
	if cfg.Journal.Enabled && cfg.Journal.Dir == "" {
		return invalid("journal.dir is required when the journal is enabled")
	}
	if cfg.Redis.Enabled {
		if cfg.Redis.Addr == "" {
			return invalid("redis.addr is required when the bridge is enabled")
		}
		if cfg.Redis.EventsPerSecond <= 0 {
			return invalid("redis.eventsPerSecond must be positive, got %g", cfg.Redis.EventsPerSecond)
		}
	}
	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.ExporterType {
		case "grpc", "http":
		default:
			return invalid("telemetry.exporterType must be grpc or http, got %q", cfg.Telemetry.ExporterType)
		}
		if cfg.Telemetry.Endpoint == "" {
			return invalid("telemetry.endpoint is required when telemetry is enabled")
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			return invalid("telemetry.samplingRate must be in [0, 1], got %g", cfg.Telemetry.SamplingRate)
		}
	}

	for name, pc := range cfg.Policies {
		if _, ok := recovery.ParseKind(name); !ok {
			return invalid("policies: unknown error kind %q", name)
		}
		if pc.MaxRetries < 0 {
			return invalid("policies.%s: maxRetries must not be negative", name)
		}
		if pc.BaseDelayMs < 0 {
			return invalid("policies.%s: baseDelayMs must not be negative", name)
		}
		if pc.Strategy != "" {
			if _, ok := validStrategies[pc.Strategy]; !ok {
				return invalid("policies.%s: unknown strategy %q", name, pc.Strategy)
			}
		}
		if pc.Fallback != "" {
			if _, ok := validFallbacks[pc.Fallback]; !ok {
				return invalid("policies.%s: unknown fallback %q", name, pc.Fallback)
			}
		}
	}
	return nil
}
