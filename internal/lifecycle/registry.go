// SPDX-License-Identifier: MIT

// Package lifecycle tracks disposable resources and performs individual,
// prioritized-batch or full teardown. Entries are ordered by registration
// time; under memory pressure the oldest fraction is disposed first.
package lifecycle

import (
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/atriumxr/atrium/internal/bus"
	"github.com/atriumxr/atrium/internal/log"
	"github.com/atriumxr/atrium/internal/metrics"
)

// EmergencyRatio is the fraction of tracked resources disposed by an
// emergency sweep, oldest first.
const EmergencyRatio = 0.3

// Disposable is the capability interface for resources that own their
// teardown. Resources lacking it fall back to io.Closer, then to the
// finalizer supplied at registration.
type Disposable interface {
	Dispose() error
}

// Metadata describes a registered resource for logs, observability and
// kind-specific teardown.
type Metadata struct {
	Kind  string
	Label string
	// Finalize tears down handles that expose no teardown capability of
	// their own (for example freeing attached secondary resources).
	Finalize func() error
}

// Entry is one tracked resource. The handle's identity, not its value, is
// what Register/Unregister/Dispose match on.
type Entry struct {
	ID           string
	Handle       any
	Meta         Metadata
	RegisteredAt time.Time
}

// Snapshot is the externally visible view of an entry.
type Snapshot struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind,omitempty"`
	Label        string    `json:"label,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Registry owns every DisposableEntry from registration until disposal or
// explicit unregistration.
type Registry struct {
	mu      sync.Mutex
	entries []*Entry

	events *bus.Bus
	clock  clock
	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock substitutes the time source, for tests.
func WithClock(c clock) Option {
	return func(r *Registry) { r.clock = c }
}

// NewRegistry creates an empty registry publishing on events.
func NewRegistry(events *bus.Bus, opts ...Option) *Registry {
	r := &Registry{
		events: events,
		clock:  realClock{},
		logger: log.WithComponent("lifecycle"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends a new entry for handle and returns its ID. Duplicate
// handles are permitted and tracked as distinct entries.
func (r *Registry) Register(handle any, meta Metadata) string {
	entry := &Entry{
		ID:           uuid.NewString(),
		Handle:       handle,
		Meta:         meta,
		RegisteredAt: r.clock.Now(),
	}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	n := len(r.entries)
	r.mu.Unlock()

	metrics.SetRegisteredResources(n)
	r.logger.Debug().
		Str("event", "lifecycle.registered").
		Str("id", entry.ID).
		Str("kind", meta.Kind).
		Str("label", meta.Label).
		Msg("resource registered")
	return entry.ID
}

// Unregister removes the first entry whose handle matches by identity without
// disposing it. It is a no-op when the handle is not tracked.
func (r *Registry) Unregister(handle any) bool {
	r.mu.Lock()
	entry := r.removeFirstLocked(handle)
	n := len(r.entries)
	r.mu.Unlock()

	if entry == nil {
		return false
	}
	metrics.SetRegisteredResources(n)
	r.logger.Debug().
		Str("event", "lifecycle.unregistered").
		Str("id", entry.ID).
		Str("kind", entry.Meta.Kind).
		Msg("resource unregistered")
	return true
}

// Dispose tears down the first entry whose handle matches by identity and
// removes it. Teardown errors are swallowed and logged so one failing
// resource never blocks others. Disposing an untracked handle is a no-op.
func (r *Registry) Dispose(handle any) bool {
	r.mu.Lock()
	entry := r.removeFirstLocked(handle)
	n := len(r.entries)
	r.mu.Unlock()

	if entry == nil {
		return false
	}
	metrics.SetRegisteredResources(n)
	r.teardown(entry)
	return true
}

// EmergencyCleanup disposes the oldest ceil(EmergencyRatio * count) entries
// by registration time and reports how many it disposed.
func (r *Registry) EmergencyCleanup() int {
	r.mu.Lock()
	count := len(r.entries)
	if count == 0 {
		r.mu.Unlock()
		return 0
	}

	byAge := append([]*Entry(nil), r.entries...)
	sort.SliceStable(byAge, func(i, j int) bool {
		return byAge[i].RegisteredAt.Before(byAge[j].RegisteredAt)
	})
	n := int(math.Ceil(EmergencyRatio * float64(count)))
	victims := byAge[:n]

	doomed := make(map[*Entry]struct{}, n)
	for _, v := range victims {
		doomed[v] = struct{}{}
	}
	kept := r.entries[:0]
	for _, e := range r.entries {
		if _, gone := doomed[e]; !gone {
			kept = append(kept, e)
		}
	}
	r.entries = kept
	remaining := len(r.entries)
	r.mu.Unlock()

	for _, v := range victims {
		r.teardown(v)
	}

	metrics.SetRegisteredResources(remaining)
	metrics.RecordEmergencyCleanup()
	r.logger.Warn().
		Str("event", "lifecycle.emergency_cleanup").
		Int("disposed", n).
		Int("remaining", remaining).
		Msg("emergency cleanup disposed oldest resources")
	r.events.Publish(bus.TopicEmergencyCleanup, bus.EmergencyCleanupDone{Disposed: n})
	return n
}

// CleanupAll disposes every remaining entry and clears the registry. Used
// only at full engine teardown.
func (r *Registry) CleanupAll() int {
	r.mu.Lock()
	victims := r.entries
	r.entries = nil
	r.mu.Unlock()

	for _, v := range victims {
		r.teardown(v)
	}
	metrics.SetRegisteredResources(0)
	if len(victims) > 0 {
		r.logger.Info().
			Str("event", "lifecycle.cleanup_all").
			Int("disposed", len(victims)).
			Msg("disposed all tracked resources")
	}
	return len(victims)
}

// Count reports the number of tracked entries.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a snapshot of the tracked entries in registration order.
func (r *Registry) Entries() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, Snapshot{
			ID:           e.ID,
			Kind:         e.Meta.Kind,
			Label:        e.Meta.Label,
			RegisteredAt: e.RegisteredAt,
		})
	}
	return out
}

// removeFirstLocked unlinks and returns the first entry matching handle by
// identity. Caller holds r.mu.
func (r *Registry) removeFirstLocked(handle any) *Entry {
	for i, e := range r.entries {
		if sameHandle(e.Handle, handle) {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return e
		}
	}
	return nil
}

// sameHandle compares handles by identity. Handles of uncomparable types
// never match.
func sameHandle(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// teardown releases one entry, preferring the resource's own capability and
// falling back to the registration-time finalizer.
func (r *Registry) teardown(entry *Entry) {
	var err error
	switch h := entry.Handle.(type) {
	case Disposable:
		err = h.Dispose()
	case io.Closer:
		err = h.Close()
	default:
		if entry.Meta.Finalize != nil {
			err = entry.Meta.Finalize()
		}
	}

	metrics.RecordDisposal(err == nil)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("event", "lifecycle.dispose_failed").
			Str("id", entry.ID).
			Str("kind", entry.Meta.Kind).
			Msg("resource teardown failed")
		return
	}
	r.logger.Debug().
		Str("event", "lifecycle.disposed").
		Str("id", entry.ID).
		Str("kind", entry.Meta.Kind).
		Msg("resource disposed")
}
