// SPDX-License-Identifier: MIT

// Package recovery maps reported errors onto bounded retry/backoff/fallback
// policies and orchestrates recovery attempts. Attempts are serialized by a
// single global in-flight flag: a new error reported while an attempt is
// pending still updates its counter and emits the error event, but executes
// its fallback instead of launching a second attempt.
package recovery

import "time"

// ErrorKind is a closed category of failure driving a specific recovery
// policy.
type ErrorKind string

const (
	KindInitialization       ErrorKind = "Initialization"
	KindResourceLoad         ErrorKind = "ResourceLoad"
	KindGraphicsContextLost  ErrorKind = "GraphicsContextLost"
	KindExternalSessionError ErrorKind = "ExternalSessionError"
	KindMemoryPressure       ErrorKind = "MemoryPressure"
	KindAudioError           ErrorKind = "AudioError"
	KindNetworkError         ErrorKind = "NetworkError"
	KindUnknown              ErrorKind = "Unknown"
)

// Kinds lists every error kind, in declaration order.
func Kinds() []ErrorKind {
	return []ErrorKind{
		KindInitialization, KindResourceLoad, KindGraphicsContextLost,
		KindExternalSessionError, KindMemoryPressure, KindAudioError,
		KindNetworkError, KindUnknown,
	}
}

// ParseKind maps a string onto a known kind. Unrecognized input yields
// KindUnknown and ok=false.
func ParseKind(s string) (ErrorKind, bool) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// Strategy names how a recovery attempt asks collaborators to resume normal
// operation.
type Strategy string

const (
	StrategyExponentialBackoff Strategy = "ExponentialBackoff"
	StrategyFullReinit         Strategy = "FullReinit"
	StrategyGracefulExit       Strategy = "GracefulExit"
	StrategyReduceQuality      Strategy = "ReduceQuality"
	StrategyReinitAudio        Strategy = "ReinitAudio"
	StrategyLogAndContinue     Strategy = "LogAndContinue"
)

// Fallback is the terminal action taken once retries for a kind are
// exhausted (or an attempt cannot launch because one is already pending).
type Fallback string

const (
	FallbackShowErrorScreen  Fallback = "ShowErrorScreen"
	FallbackUsePlaceholder   Fallback = "UsePlaceholder"
	FallbackContinueDegraded Fallback = "ContinueDegraded"
	FallbackEmergencyCleanup Fallback = "EmergencyCleanup"
	FallbackDisableAudio     Fallback = "DisableAudio"
	FallbackOfflineMode      Fallback = "OfflineMode"
)

// Policy is the per-kind recovery configuration, fixed at engine
// construction.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Strategy   Strategy
	Fallback   Fallback
}

// DefaultPolicies returns the built-in policy table.
func DefaultPolicies() map[ErrorKind]Policy {
	return map[ErrorKind]Policy{
		KindInitialization:       {MaxRetries: 3, BaseDelay: 1000 * time.Millisecond, Strategy: StrategyExponentialBackoff, Fallback: FallbackShowErrorScreen},
		KindResourceLoad:         {MaxRetries: 5, BaseDelay: 500 * time.Millisecond, Strategy: StrategyExponentialBackoff, Fallback: FallbackUsePlaceholder},
		KindGraphicsContextLost:  {MaxRetries: 2, BaseDelay: 2000 * time.Millisecond, Strategy: StrategyFullReinit, Fallback: FallbackShowErrorScreen},
		KindExternalSessionError: {MaxRetries: 2, BaseDelay: 1000 * time.Millisecond, Strategy: StrategyGracefulExit, Fallback: FallbackContinueDegraded},
		KindMemoryPressure:       {MaxRetries: 1, BaseDelay: 0, Strategy: StrategyReduceQuality, Fallback: FallbackEmergencyCleanup},
		KindAudioError:           {MaxRetries: 3, BaseDelay: 500 * time.Millisecond, Strategy: StrategyReinitAudio, Fallback: FallbackDisableAudio},
		KindNetworkError:         {MaxRetries: 3, BaseDelay: 2000 * time.Millisecond, Strategy: StrategyExponentialBackoff, Fallback: FallbackOfflineMode},
		KindUnknown:              {MaxRetries: 1, BaseDelay: 1000 * time.Millisecond, Strategy: StrategyLogAndContinue, Fallback: FallbackShowErrorScreen},
	}
}

// BackoffDelay computes the suspension before attempt n (1-based): the base
// delay doubled per prior attempt for ExponentialBackoff, the flat base delay
// for every other strategy.
func BackoffDelay(p Policy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.Strategy != StrategyExponentialBackoff {
		return p.BaseDelay
	}
	return p.BaseDelay << (attempt - 1)
}
