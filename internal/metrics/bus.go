// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BusPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_bus_publishes_total",
		Help: "Total number of events published per topic",
	}, []string{"topic"})

	BusSubscriberPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atrium_bus_subscriber_panics_total",
		Help: "Total number of subscriber callbacks that panicked, by topic",
	}, []string{"topic"})
)

// RecordBusPublish counts a published event.
func RecordBusPublish(topic string) {
	if topic == "" {
		topic = "unknown"
	}
	BusPublishesTotal.WithLabelValues(topic).Inc()
}

// RecordBusSubscriberPanic counts a recovered subscriber panic.
func RecordBusSubscriberPanic(topic string) {
	if topic == "" {
		topic = "unknown"
	}
	BusSubscriberPanicsTotal.WithLabelValues(topic).Inc()
}
