// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegisteredResources = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atrium_resources_registered",
		Help: "Number of disposable resources currently tracked by the registry",
	})

	DisposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_resource_disposals_total",
		Help: "Total number of resource disposals by result",
	}, []string{"result"})

	EmergencyCleanupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atrium_emergency_cleanups_total",
		Help: "Total number of emergency cleanup sweeps",
	})
)

// SetRegisteredResources records the current registry size.
func SetRegisteredResources(n int) {
	RegisteredResources.Set(float64(n))
}

// RecordDisposal counts one disposal attempt.
func RecordDisposal(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	DisposalsTotal.WithLabelValues(result).Inc()
}

// RecordEmergencyCleanup counts one emergency sweep.
func RecordEmergencyCleanup() {
	EmergencyCleanupsTotal.Inc()
}
