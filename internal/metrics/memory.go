// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MemoryUsageRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atrium_memory_usage_ratio",
		Help: "Last sampled memory usage ratio (used/total), 0..1",
	})

	MemoryChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_memory_checks_total",
		Help: "Total number of memory monitor ticks by result (ok, pressure, skipped)",
	}, []string{"result"})
)

// RecordMemoryCheck records one monitor tick.
func RecordMemoryCheck(usage float64, result string) {
	if result == "" {
		result = "unknown"
	}
	if result != "skipped" {
		MemoryUsageRatio.Set(usage)
	}
	MemoryChecksTotal.WithLabelValues(result).Inc()
}
