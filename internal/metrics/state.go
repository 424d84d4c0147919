// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus instrumentation for the control core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_state_transitions_total",
		Help: "Total number of state transition requests by origin, target and result",
	}, []string{"from", "to", "result"})

	CurrentState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "atrium_state_current",
		Help: "Set to 1 for the currently occupied application state",
	}, []string{"state"})

	StateDurationSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_state_duration_seconds_total",
		Help: "Accumulated wall time spent in each state",
	}, []string{"state"})
)

// RecordTransition records the outcome of a transition request.
func RecordTransition(from, to string, accepted bool) {
	result := "accepted"
	if !accepted {
		result = "rejected"
	}
	TransitionsTotal.WithLabelValues(from, to, result).Inc()
}

// SetCurrentState marks the given state as current and clears the previous one.
func SetCurrentState(prev, current string) {
	if prev != "" {
		CurrentState.WithLabelValues(prev).Set(0)
	}
	CurrentState.WithLabelValues(current).Set(1)
}

// AddStateDuration accumulates time spent in a state.
func AddStateDuration(state string, seconds float64) {
	if seconds < 0 {
		return
	}
	StateDurationSeconds.WithLabelValues(state).Add(seconds)
}
