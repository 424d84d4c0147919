// SPDX-License-Identifier: MIT

package state

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumxr/atrium/internal/bus"
	"github.com/atriumxr/atrium/internal/log"
	"github.com/atriumxr/atrium/internal/metrics"
)

// DefaultHistoryCapacity bounds the transition history ring.
const DefaultHistoryCapacity = 50

// TransitionRecord captures one accepted transition.
type TransitionRecord struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
	Data any       `json:"data,omitempty"`
}

// EntryHook runs after a state has been entered, with the transition payload.
type EntryHook func(payload any)

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Machine is the state controller. It owns the current/previous state, the
// bounded history, per-state dwell times and per-state payload data. All
// mutation goes through Transition (or the Pause/Resume/Reset wrappers).
type Machine struct {
	mu        sync.Mutex
	current   State
	previous  State
	enteredAt time.Time
	durations map[State]time.Duration
	history   []TransitionRecord
	histCap   int
	data      map[State]any
	hooks     map[State][]EntryHook

	events *bus.Bus
	clock  clock
	logger zerolog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock substitutes the time source, for tests.
func WithClock(c clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithHistoryCapacity overrides the history ring capacity.
func WithHistoryCapacity(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.histCap = n
		}
	}
}

// NewMachine creates a controller in the Initializing state, publishing its
// lifecycle events on events.
func NewMachine(events *bus.Bus, opts ...Option) *Machine {
	m := &Machine{
		current:   Initializing,
		durations: make(map[State]time.Duration),
		histCap:   DefaultHistoryCapacity,
		data:      make(map[State]any),
		hooks:     make(map[State][]EntryHook),
		events:    events,
		clock:     realClock{},
		logger:    log.WithComponent("state"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.enteredAt = m.clock.Now()
	metrics.SetCurrentState("", string(m.current))
	return m
}

// OnEnter registers a hook invoked whenever s is entered. Hooks run after the
// stateChange event has been published, in registration order.
func (m *Machine) OnEnter(s State, hook EntryHook) {
	if hook == nil {
		return
	}
	m.mu.Lock()
	m.hooks[s] = append(m.hooks[s], hook)
	m.mu.Unlock()
}

// Transition requests a move to target. It fails closed: a target outside the
// current state's reachable set leaves the controller untouched, logs a
// warning and returns false.
func (m *Machine) Transition(target State, payload any) bool {
	m.mu.Lock()

	from := m.current
	if !CanTransition(from, target) {
		m.mu.Unlock()
		metrics.RecordTransition(string(from), string(target), false)
		m.logger.Warn().
			Str("event", "state.transition_rejected").
			Str("from", string(from)).
			Str("to", string(target)).
			Msg("transition not permitted by table")
		return false
	}

	now := m.clock.Now()
	dwell := now.Sub(m.enteredAt)
	if dwell > 0 {
		m.durations[from] += dwell
		metrics.AddStateDuration(string(from), dwell.Seconds())
	}

	m.history = append(m.history, TransitionRecord{From: from, To: target, At: now, Data: payload})
	if len(m.history) > m.histCap {
		m.history = m.history[len(m.history)-m.histCap:]
	}

	m.previous = from
	m.current = target
	m.enteredAt = now
	m.data[target] = payload
	hooks := append([]EntryHook(nil), m.hooks[target]...)
	m.mu.Unlock()

	metrics.RecordTransition(string(from), string(target), true)
	metrics.SetCurrentState(string(from), string(target))
	m.logger.Info().
		Str("event", "state.transition").
		Str("from", string(from)).
		Str("to", string(target)).
		Msg("state changed")

	m.events.Publish(bus.TopicStateChange, bus.StateChange{
		From: string(from),
		To:   string(target),
		Data: payload,
	})
	m.publishEntryEvents(from, target, payload)

	for _, hook := range hooks {
		hook(payload)
	}
	return true
}

// publishEntryEvents emits the per-state side-channel events for states that
// carry them.
func (m *Machine) publishEntryEvents(from, target State, payload any) {
	switch target {
	case Paused:
		m.events.Publish(bus.TopicPause, bus.Paused{From: string(from)})
	case ExternalSession:
		m.events.Publish(bus.TopicExternalSessionStart, bus.ExternalSessionStarted{Data: payload})
	case ViewingDetail:
		m.events.Publish(bus.TopicFocusChanged, bus.FocusChanged{Data: payload})
	}
}

// Pause moves to Paused. Already being paused is an idempotent no-op that
// reports success.
func (m *Machine) Pause() bool {
	if m.IsIn(Paused) {
		return true
	}
	return m.Transition(Paused, nil)
}

// Resume returns to the state occupied before the pause. It only applies from
// Paused and only when a previous state exists.
func (m *Machine) Resume() bool {
	m.mu.Lock()
	current, previous := m.current, m.previous
	m.mu.Unlock()

	if current != Paused || previous == "" {
		return false
	}
	return m.Transition(previous, nil)
}

// Current returns the occupied state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the immediately prior state, or "" before the first
// transition.
func (m *Machine) Previous() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// IsIn reports whether s is the occupied state.
func (m *Machine) IsIn(s State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == s
}

// DataFor returns the payload stored when s was last entered. Passing "" asks
// for the current state's data.
func (m *Machine) DataFor(s State) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == "" {
		s = m.current
	}
	return m.data[s]
}

// History returns a copy of the transition history, oldest first.
func (m *Machine) History() []TransitionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TransitionRecord(nil), m.history...)
}

// Durations returns a copy of the accumulated dwell time per state. Time in
// the current state accrues on the next transition.
func (m *Machine) Durations() map[State]time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[State]time.Duration, len(m.durations))
	for k, v := range m.durations {
		out[k] = v
	}
	return out
}

// TimeInCurrent reports how long the current state has been occupied.
func (m *Machine) TimeInCurrent() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock.Now().Sub(m.enteredAt)
}

// Reset clears history, dwell times, stored data and hooks. Used only at full
// engine teardown; the controller is inert afterwards.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.durations = make(map[State]time.Duration)
	m.data = make(map[State]any)
	m.hooks = make(map[State][]EntryHook)
	m.previous = ""
}
