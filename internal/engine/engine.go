// SPDX-License-Identifier: MIT

// Package engine assembles the control core: event bus, state controller,
// recovery engine, resource registry and memory monitor. One Engine instance
// is constructed at process start, handed to every collaborator that needs
// it, and torn down exactly once via Cleanup.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumxr/atrium/internal/bus"
	"github.com/atriumxr/atrium/internal/lifecycle"
	"github.com/atriumxr/atrium/internal/log"
	"github.com/atriumxr/atrium/internal/memwatch"
	"github.com/atriumxr/atrium/internal/recovery"
	"github.com/atriumxr/atrium/internal/state"
)

// ErrorSignal is the transition payload collaborators attach when they move
// the controller into the Error state directly. The Error entry hook unpacks
// it and forwards it to the recovery engine.
type ErrorSignal struct {
	Err  error
	Kind recovery.ErrorKind
}

// Options configures an Engine. Zero values select the built-in defaults.
type Options struct {
	HistoryCapacity int
	Policies        map[recovery.ErrorKind]recovery.Policy
	MemoryInterval  time.Duration
	MemoryThreshold float64
	Sampler         memwatch.Sampler
}

// Engine is the process-lifetime control core instance.
type Engine struct {
	Events    *bus.Bus
	States    *state.Machine
	Recovery  *recovery.Engine
	Resources *lifecycle.Registry
	Memory    *memwatch.Monitor

	logger      zerolog.Logger
	cleanupOnce sync.Once
}

// New wires the components together. The returned engine is in the
// Initializing state; call Start to begin memory monitoring.
func New(opts Options) *Engine {
	events := bus.New()

	var stateOpts []state.Option
	if opts.HistoryCapacity > 0 {
		stateOpts = append(stateOpts, state.WithHistoryCapacity(opts.HistoryCapacity))
	}
	states := state.NewMachine(events, stateOpts...)

	resources := lifecycle.NewRegistry(events)

	var recOpts []recovery.Option
	if len(opts.Policies) > 0 {
		recOpts = append(recOpts, recovery.WithPolicies(opts.Policies))
	}
	rec := recovery.NewEngine(events, states, resources, recOpts...)

	// Entering Error defers triage to the recovery engine.
	states.OnEnter(state.Error, func(payload any) {
		err, kind := unpackErrorSignal(payload)
		rec.Report(err, kind)
	})

	sampler := opts.Sampler
	if sampler == nil {
		sampler = memwatch.RuntimeSampler{}
	}
	var memOpts []memwatch.Option
	if opts.MemoryInterval > 0 {
		memOpts = append(memOpts, memwatch.WithInterval(opts.MemoryInterval))
	}
	if opts.MemoryThreshold > 0 {
		memOpts = append(memOpts, memwatch.WithThreshold(opts.MemoryThreshold))
	}
	memory := memwatch.NewMonitor(events, sampler, rec, memOpts...)

	return &Engine{
		Events:    events,
		States:    states,
		Recovery:  rec,
		Resources: resources,
		Memory:    memory,
		logger:    log.WithComponent("engine"),
	}
}

// unpackErrorSignal extracts the error and kind from an Error-state
// transition payload, defaulting to Unknown for untyped payloads.
func unpackErrorSignal(payload any) (error, recovery.ErrorKind) {
	switch sig := payload.(type) {
	case ErrorSignal:
		return sig.Err, sig.Kind
	case *ErrorSignal:
		if sig != nil {
			return sig.Err, sig.Kind
		}
	case error:
		return sig, recovery.KindUnknown
	case nil:
		return nil, recovery.KindUnknown
	}
	return fmt.Errorf("error state entered: %v", payload), recovery.KindUnknown
}

// Start launches the background services (currently the memory monitor).
func (e *Engine) Start() {
	e.Memory.Start()
	e.logger.Info().Str("event", "engine.started").Msg("control core started")
}

// Fail moves the controller into the Error state carrying err/kind, which
// triggers recovery triage through the entry hook.
func (e *Engine) Fail(err error, kind recovery.ErrorKind) bool {
	return e.States.Transition(state.Error, ErrorSignal{Err: err, Kind: kind})
}

// Cleanup tears the engine down exactly once: announce, stop the monitor,
// drain recovery, dispose every tracked resource, clear history, counts and
// subscriptions. The instance is inert afterwards.
func (e *Engine) Cleanup() {
	e.cleanupOnce.Do(func() {
		e.logger.Info().Str("event", "engine.cleanup_start").Msg("tearing down control core")

		e.Events.Publish(bus.TopicCleanup, bus.CleanupDone{})

		e.Memory.Stop()
		e.Recovery.Close()
		e.Resources.CleanupAll()
		e.Recovery.Reset()
		e.States.Reset()
		e.Events.Clear()

		e.logger.Info().Str("event", "engine.cleanup_done").Msg("control core torn down")
	})
}
