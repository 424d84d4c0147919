// SPDX-License-Identifier: MIT

package recovery

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atriumxr/atrium/internal/bus"
	"github.com/atriumxr/atrium/internal/log"
	"github.com/atriumxr/atrium/internal/metrics"
	"github.com/atriumxr/atrium/internal/state"
)

// StateController is the slice of the state machine the recovery engine
// drives: resuming after a successful attempt and degrading on fallback.
type StateController interface {
	Transition(target state.State, payload any) bool
	Previous() state.State
}

// ResourceSweeper executes the EmergencyCleanup fallback.
type ResourceSweeper interface {
	EmergencyCleanup() int
}

// ErrorRecord is the last reported error.
type ErrorRecord struct {
	Err  error     `json:"-"`
	Kind ErrorKind `json:"kind"`
	At   time.Time `json:"at"`
}

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Engine triages reported errors. Callers get fire-and-forget semantics: the
// engine never re-throws, and observability comes from the error event and
// the strategy/fallback topics.
type Engine struct {
	mu       sync.Mutex
	policies map[ErrorKind]Policy
	counts   map[ErrorKind]int
	last     *ErrorRecord
	inFlight bool
	closed   bool

	stop chan struct{}
	wg   sync.WaitGroup

	events  *bus.Bus
	states  StateController
	sweeper ResourceSweeper
	clock   clock
	after   func(time.Duration) <-chan time.Time
	logger  zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicies overrides the built-in policy table. Kinds absent from the
// override keep their defaults.
func WithPolicies(overrides map[ErrorKind]Policy) Option {
	return func(e *Engine) {
		for kind, p := range overrides {
			e.policies[kind] = p
		}
	}
}

// WithClock substitutes the time source, for tests.
func WithClock(c clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithAfter substitutes the suspension timer, for tests.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(e *Engine) { e.after = after }
}

// NewEngine creates a recovery engine publishing on events and driving
// states. sweeper handles the EmergencyCleanup fallback.
func NewEngine(events *bus.Bus, states StateController, sweeper ResourceSweeper, opts ...Option) *Engine {
	e := &Engine{
		policies: DefaultPolicies(),
		counts:   make(map[ErrorKind]int),
		stop:     make(chan struct{}),
		events:   events,
		states:   states,
		sweeper:  sweeper,
		clock:    realClock{},
		after:    time.After,
		logger:   log.WithComponent("recovery"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report triages one error occurrence. The kind's counter always advances and
// the error event is always published; a recovery attempt launches only while
// the counter is within the policy's retry budget and no other attempt is in
// flight — otherwise the policy's fallback executes immediately.
func (e *Engine) Report(err error, kind ErrorKind) {
	if err == nil {
		err = errors.New("unspecified error")
	}
	if _, ok := e.policies[kind]; !ok {
		kind = KindUnknown
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn().
			Str("event", "recovery.report_after_close").
			Str("kind", string(kind)).
			Msg("error reported after engine teardown")
		return
	}
	e.counts[kind]++
	count := e.counts[kind]
	e.last = &ErrorRecord{Err: err, Kind: kind, At: e.clock.Now()}
	policy := e.policyLocked(kind)
	launch := count <= policy.MaxRetries && !e.inFlight
	if launch {
		e.inFlight = true
	}
	e.mu.Unlock()

	metrics.RecordError(string(kind))
	if launch {
		metrics.SetRecoveryInFlight(true)
	}
	e.logger.Error().
		Err(err).
		Str("event", "recovery.error_reported").
		Str("kind", string(kind)).
		Int("count", count).
		Bool("attempting", launch).
		Msg("error reported")

	if launch {
		e.wg.Add(1)
		go e.attempt(kind, policy, count)
	} else {
		e.executeFallback(kind, policy, err)
	}

	e.events.Publish(bus.TopicError, bus.ErrorReported{
		Err:   err,
		Kind:  string(kind),
		Count: count,
	})
}

// attempt runs one recovery attempt: suspend for the computed backoff delay,
// signal the owning collaborator via the strategy topic, then steer the state
// machine back to where it was. The in-flight flag is cleared on every exit
// path; a panic inside the attempt is re-reported as a new error of the same
// kind after the flag has been released.
func (e *Engine) attempt(kind ErrorKind, policy Policy, attemptNum int) {
	defer e.wg.Done()

	metrics.RecordRecoveryAttempt(string(kind), string(policy.Strategy))

	var repanic any
	cancelled := false
	func() {
		defer func() { repanic = recover() }()

		delay := BackoffDelay(policy, attemptNum)
		e.logger.Info().
			Str("event", "recovery.attempt_start").
			Str("kind", string(kind)).
			Int("attempt", attemptNum).
			Dur("delay", delay).
			Msg("recovery attempt scheduled")

		select {
		case <-e.after(delay):
		case <-e.stop:
			cancelled = true
			return
		}

		e.publishStrategy(kind, policy.Strategy, attemptNum)
		e.resume()
	}()

	e.clearInFlight()

	switch {
	case repanic != nil:
		metrics.RecordRecoveryOutcome(string(kind), "repanicked")
		e.logger.Error().
			Str("event", "recovery.attempt_panic").
			Str("kind", string(kind)).
			Interface("panic", repanic).
			Msg("recovery attempt panicked, re-reporting")
		e.Report(fmt.Errorf("recovery attempt failed: %v", repanic), kind)
	case cancelled:
		metrics.RecordRecoveryOutcome(string(kind), "cancelled")
	default:
		metrics.RecordRecoveryOutcome(string(kind), "resumed")
		e.logger.Info().
			Str("event", "recovery.attempt_done").
			Str("kind", string(kind)).
			Int("attempt", attemptNum).
			Msg("recovery attempt completed")
	}
}

// resume steers the controller out of the Error state: back to the previous
// state when the table allows it, otherwise to Exploring.
func (e *Engine) resume() {
	target := e.states.Previous()
	if target == "" || target == state.Error {
		target = state.Exploring
	}
	if e.states.Transition(target, nil) {
		return
	}
	if target != state.Exploring {
		e.states.Transition(state.Exploring, nil)
	}
}

func (e *Engine) publishStrategy(kind ErrorKind, strategy Strategy, attempt int) {
	action := bus.RecoveryAction{Kind: string(kind), Attempt: attempt}
	switch strategy {
	case StrategyExponentialBackoff:
		e.events.Publish(bus.TopicRetryOperation, action)
	case StrategyFullReinit:
		e.events.Publish(bus.TopicReinitialize, action)
	case StrategyGracefulExit:
		e.events.Publish(bus.TopicGracefulExit, action)
	case StrategyReduceQuality:
		e.events.Publish(bus.TopicReduceQuality, action)
	case StrategyReinitAudio:
		e.events.Publish(bus.TopicReinitAudio, action)
	case StrategyLogAndContinue:
		e.logger.Info().
			Str("event", "recovery.log_and_continue").
			Str("kind", string(kind)).
			Msg("continuing without collaborator action")
	}
}

// executeFallback runs the terminal action for a kind whose retry budget is
// exhausted or whose attempt could not launch.
func (e *Engine) executeFallback(kind ErrorKind, policy Policy, err error) {
	metrics.RecordFallback(string(kind), string(policy.Fallback))
	e.logger.Warn().
		Str("event", "recovery.fallback").
		Str("kind", string(kind)).
		Str("fallback", string(policy.Fallback)).
		Msg("executing fallback")

	switch policy.Fallback {
	case FallbackShowErrorScreen:
		e.events.Publish(bus.TopicShowErrorScreen, bus.ShowErrorScreen{Kind: string(kind), Err: err})
	case FallbackUsePlaceholder:
		e.events.Publish(bus.TopicUsePlaceholder, bus.UsePlaceholder{Kind: string(kind)})
	case FallbackContinueDegraded:
		e.states.Transition(state.Exploring, nil)
	case FallbackEmergencyCleanup:
		if e.sweeper != nil {
			e.sweeper.EmergencyCleanup()
		}
	case FallbackDisableAudio:
		e.events.Publish(bus.TopicDisableAudio, bus.AudioDisabled{})
	case FallbackOfflineMode:
		e.events.Publish(bus.TopicEnableOfflineMode, bus.OfflineModeEnabled{})
	}
}

func (e *Engine) clearInFlight() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
	metrics.SetRecoveryInFlight(false)
}

// ResetCount zeroes one kind's counter, leaving the others untouched. Called
// once a subsystem has demonstrably recovered.
func (e *Engine) ResetCount(kind ErrorKind) {
	e.mu.Lock()
	delete(e.counts, kind)
	e.mu.Unlock()
	e.logger.Info().
		Str("event", "recovery.count_reset").
		Str("kind", string(kind)).
		Msg("error count reset")
}

// Counts returns a copy of the cumulative error counts.
func (e *Engine) Counts() map[ErrorKind]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[ErrorKind]int, len(e.counts))
	for k, v := range e.counts {
		out[k] = v
	}
	return out
}

// LastError returns the most recently reported error, or nil.
func (e *Engine) LastError() *ErrorRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	rec := *e.last
	return &rec
}

// InFlight reports whether a recovery attempt is pending.
func (e *Engine) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// Policy returns the effective policy for kind.
func (e *Engine) Policy(kind ErrorKind) Policy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.policyLocked(kind)
}

func (e *Engine) policyLocked(kind ErrorKind) Policy {
	if p, ok := e.policies[kind]; ok {
		return p
	}
	return e.policies[KindUnknown]
}

// Close cancels any pending suspension and waits for the in-flight attempt to
// unwind. New reports after Close are dropped with a warning.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.stop)
	e.mu.Unlock()
	e.wg.Wait()
}

// Reset clears error counts and the last-error record. Used only at full
// engine teardown, after Close.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counts = make(map[ErrorKind]int)
	e.last = nil
}
