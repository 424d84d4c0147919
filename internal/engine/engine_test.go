// SPDX-License-Identifier: MIT

package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumxr/atrium/internal/bus"
	"github.com/atriumxr/atrium/internal/lifecycle"
	"github.com/atriumxr/atrium/internal/memwatch"
	"github.com/atriumxr/atrium/internal/recovery"
	"github.com/atriumxr/atrium/internal/state"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Sampler == nil {
		opts.Sampler = memwatch.SamplerFunc(func() (uint64, uint64, bool) {
			return 0, 0, false
		})
	}
	e := New(opts)
	t.Cleanup(e.Cleanup)
	return e
}

func boot(t *testing.T, e *Engine) {
	t.Helper()
	require.True(t, e.States.Transition(state.Loading, nil))
	require.True(t, e.States.Transition(state.Ready, nil))
	require.True(t, e.States.Transition(state.Exploring, nil))
}

func TestNewWiresComponents(t *testing.T) {
	e := newTestEngine(t, Options{})

	assert.NotNil(t, e.Events)
	assert.NotNil(t, e.States)
	assert.NotNil(t, e.Recovery)
	assert.NotNil(t, e.Resources)
	assert.NotNil(t, e.Memory)
	assert.Equal(t, state.Initializing, e.States.Current())
}

func TestFailRoutesThroughErrorState(t *testing.T) {
	e := newTestEngine(t, Options{
		Policies: map[recovery.ErrorKind]recovery.Policy{
			recovery.KindResourceLoad: {
				MaxRetries: 3,
				BaseDelay:  time.Millisecond,
				Strategy:   recovery.StrategyExponentialBackoff,
				Fallback:   recovery.FallbackUsePlaceholder,
			},
		},
	})
	boot(t, e)

	require.True(t, e.Fail(errors.New("texture fetch failed"), recovery.KindResourceLoad))

	assert.Equal(t, state.Error, e.States.Current())
	assert.Equal(t, 1, e.Recovery.Counts()[recovery.KindResourceLoad])

	// The attempt suspends for the short backoff, then resumes to the
	// pre-error state.
	require.Eventually(t, func() bool {
		return e.States.Current() == state.Exploring && !e.Recovery.InFlight()
	}, 2*time.Second, time.Millisecond)
}

func TestErrorStateEntryWithPlainErrorPayload(t *testing.T) {
	e := newTestEngine(t, Options{})
	boot(t, e)

	require.True(t, e.States.Transition(state.Error, errors.New("untyped failure")))

	assert.Equal(t, 1, e.Recovery.Counts()[recovery.KindUnknown])
}

func TestUnpackErrorSignal(t *testing.T) {
	sig := ErrorSignal{Err: errors.New("boom"), Kind: recovery.KindAudioError}

	err, kind := unpackErrorSignal(sig)
	assert.Equal(t, sig.Err, err)
	assert.Equal(t, recovery.KindAudioError, kind)

	err, kind = unpackErrorSignal(&sig)
	assert.Equal(t, sig.Err, err)
	assert.Equal(t, recovery.KindAudioError, kind)

	err, kind = unpackErrorSignal((*ErrorSignal)(nil))
	assert.NoError(t, err)
	assert.Equal(t, recovery.KindUnknown, kind)

	plain := errors.New("plain")
	err, kind = unpackErrorSignal(plain)
	assert.Equal(t, plain, err)
	assert.Equal(t, recovery.KindUnknown, kind)

	err, kind = unpackErrorSignal(nil)
	assert.NoError(t, err)
	assert.Equal(t, recovery.KindUnknown, kind)

	err, kind = unpackErrorSignal("something odd")
	assert.ErrorContains(t, err, "something odd")
	assert.Equal(t, recovery.KindUnknown, kind)
}

func TestHistoryCapacityOption(t *testing.T) {
	e := newTestEngine(t, Options{HistoryCapacity: 3})
	boot(t, e)

	for i := 0; i < 5; i++ {
		require.True(t, e.States.Transition(state.MenuOpen, nil))
		require.True(t, e.States.Transition(state.Exploring, nil))
	}
	assert.Len(t, e.States.History(), 3)
}

func TestCleanupTearsEverythingDownOnce(t *testing.T) {
	e := New(Options{
		Sampler: memwatch.SamplerFunc(func() (uint64, uint64, bool) { return 0, 0, false }),
	})
	boot(t, e)

	var cleanups int
	e.Events.Subscribe(bus.TopicCleanup, func(any) { cleanups++ })

	disposed := 0
	handle := &struct{ name string }{name: "exhibit"}
	e.Resources.Register(handle, lifecycle.Metadata{
		Kind:     "scene",
		Finalize: func() error { disposed++; return nil },
	})

	e.Fail(errors.New("boom"), recovery.KindUnknown)
	e.Start()

	e.Cleanup()

	assert.Equal(t, 1, cleanups, "cleanup event announced before teardown")
	assert.Equal(t, 1, disposed)
	assert.Equal(t, 0, e.Resources.Count())
	assert.Empty(t, e.Recovery.Counts())
	assert.Nil(t, e.Recovery.LastError())
	assert.Empty(t, e.States.History())

	// The bus is cleared: nothing reaches old subscribers afterwards.
	e.Events.Publish(bus.TopicCleanup, bus.CleanupDone{})
	assert.Equal(t, 1, cleanups)

	// Cleanup is idempotent.
	assert.NotPanics(t, e.Cleanup)

	// Reports after teardown are dropped.
	e.Recovery.Report(errors.New("late"), recovery.KindUnknown)
	assert.Empty(t, e.Recovery.Counts())
}
