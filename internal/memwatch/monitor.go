// SPDX-License-Identifier: MIT

// Package memwatch samples memory usage on a fixed interval and reports
// memory pressure to the recovery engine when the usage ratio crosses a
// threshold.
package memwatch

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumxr/atrium/internal/bus"
	"github.com/atriumxr/atrium/internal/log"
	"github.com/atriumxr/atrium/internal/metrics"
	"github.com/atriumxr/atrium/internal/recovery"
)

const (
	// DefaultInterval is how often the monitor samples.
	DefaultInterval = 30 * time.Second
	// DefaultThreshold is the usage ratio above which pressure is reported.
	DefaultThreshold = 0.9
)

// ErrHighMemory is the error reported on every threshold breach.
var ErrHighMemory = errors.New("high memory usage")

// Sampler reports current memory usage. ok is false when the host cannot
// report usage, in which case the whole check is skipped.
type Sampler interface {
	Sample() (used, total uint64, ok bool)
}

// Reporter receives the MemoryPressure error. Satisfied by
// *recovery.Engine.
type Reporter interface {
	Report(err error, kind recovery.ErrorKind)
}

// Monitor runs the periodic check while the engine is live.
type Monitor struct {
	interval time.Duration
	sampler  Sampler
	reporter Reporter
	events   *bus.Bus
	logger   zerolog.Logger

	mu        sync.Mutex
	threshold float64
	stop      chan struct{}
	done      chan struct{}
	running   bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides the sampling interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithThreshold overrides the pressure threshold.
func WithThreshold(t float64) Option {
	return func(m *Monitor) {
		if t > 0 && t <= 1 {
			m.threshold = t
		}
	}
}

// NewMonitor creates a monitor sampling from sampler and reporting pressure
// to reporter.
func NewMonitor(events *bus.Bus, sampler Sampler, reporter Reporter, opts ...Option) *Monitor {
	m := &Monitor{
		interval:  DefaultInterval,
		threshold: DefaultThreshold,
		sampler:   sampler,
		reporter:  reporter,
		events:    events,
		logger:    log.WithComponent("memwatch"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetThreshold adjusts the pressure threshold at runtime (config reload).
func (m *Monitor) SetThreshold(t float64) {
	if t <= 0 || t > 1 {
		return
	}
	m.mu.Lock()
	m.threshold = t
	m.mu.Unlock()
}

// Start launches the sampling loop. Starting a running monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)
	m.logger.Info().
		Str("event", "memwatch.started").
		Dur("interval", m.interval).
		Float64("threshold", m.threshold).
		Msg("memory monitor started")
}

// Stop cancels the sampling loop and waits for it to exit. Part of full
// engine teardown.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
	m.logger.Info().Str("event", "memwatch.stopped").Msg("memory monitor stopped")
}

func (m *Monitor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CheckOnce()
		case <-stop:
			return
		}
	}
}

// CheckOnce performs one sampling pass: skip entirely when the sampler cannot
// report, report MemoryPressure above the threshold, and always publish the
// memoryCheck event for observability when a sample was taken.
func (m *Monitor) CheckOnce() {
	used, total, ok := m.sampler.Sample()
	if !ok || total == 0 {
		metrics.RecordMemoryCheck(0, "skipped")
		return
	}

	usage := float64(used) / float64(total)
	m.mu.Lock()
	threshold := m.threshold
	m.mu.Unlock()

	if usage > threshold {
		metrics.RecordMemoryCheck(usage, "pressure")
		m.logger.Warn().
			Str("event", "memwatch.pressure").
			Float64("usage", usage).
			Uint64("used", used).
			Uint64("total", total).
			Msg("memory usage above threshold")
		m.reporter.Report(ErrHighMemory, recovery.KindMemoryPressure)
	} else {
		metrics.RecordMemoryCheck(usage, "ok")
	}

	m.events.Publish(bus.TopicMemoryCheck, bus.MemoryCheck{
		Usage: usage,
		Used:  used,
		Total: total,
	})
}
