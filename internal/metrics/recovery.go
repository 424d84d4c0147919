// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_errors_total",
		Help: "Total number of reported errors by kind",
	}, []string{"kind"})

	RecoveryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_recovery_attempts_total",
		Help: "Total number of recovery attempts by kind and strategy",
	}, []string{"kind", "strategy"})

	RecoveryOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_recovery_outcomes_total",
		Help: "Recovery attempt outcomes by kind and outcome (resumed, repanicked)",
	}, []string{"kind", "outcome"})

	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_recovery_fallbacks_total",
		Help: "Terminal fallback executions by kind and fallback action",
	}, []string{"kind", "fallback"})

	RecoveryInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atrium_recovery_in_flight",
		Help: "1 while a recovery attempt is pending, 0 otherwise",
	})
)

// RecordError counts a reported error.
func RecordError(kind string) {
	ErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordRecoveryAttempt counts a launched recovery attempt.
func RecordRecoveryAttempt(kind, strategy string) {
	RecoveryAttemptsTotal.WithLabelValues(kind, strategy).Inc()
}

// RecordRecoveryOutcome counts the terminal outcome of an attempt.
func RecordRecoveryOutcome(kind, outcome string) {
	RecoveryOutcomesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordFallback counts a fallback execution.
func RecordFallback(kind, fallback string) {
	FallbacksTotal.WithLabelValues(kind, fallback).Inc()
}

// SetRecoveryInFlight mirrors the global in-flight flag.
func SetRecoveryInFlight(active bool) {
	if active {
		RecoveryInFlight.Set(1)
		return
	}
	RecoveryInFlight.Set(0)
}
