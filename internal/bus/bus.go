// SPDX-License-Identifier: MIT

// Package bus implements the synchronous publish/subscribe hub that wires the
// control core together. Delivery is in-process and ordered: Publish fans out
// to every current subscriber of a topic in subscription order, and each
// callback runs inside its own panic boundary so one misbehaving subscriber
// never affects the rest of the fanout or the publisher.
package bus

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/atriumxr/atrium/internal/log"
	"github.com/atriumxr/atrium/internal/metrics"
)

// Callback receives the payload published for a topic.
type Callback func(payload any)

type subscription struct {
	id int64
	fn Callback
}

// Bus is the in-process event hub. The zero value is not usable; construct
// with New.
type Bus struct {
	mu     sync.Mutex
	nextID int64
	subs   map[Topic][]subscription
	logger zerolog.Logger
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		subs:   make(map[Topic][]subscription),
		logger: log.WithComponent("bus"),
	}
}

// Subscribe registers fn for topic and returns a func that removes exactly
// this registration. A callback may be subscribed to many topics and a topic
// may carry many callbacks.
func (b *Bus) Subscribe(topic Topic, fn Callback) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		lst := b.subs[topic]
		out := lst[:0]
		for _, s := range lst {
			if s.id != id {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			delete(b.subs, topic)
		} else {
			b.subs[topic] = out
		}
	}
}

// Publish delivers payload to every current subscriber of topic, in
// subscription order, on the caller's goroutine. Subscriber panics are
// recovered, logged and counted; they are never re-thrown to the publisher.
func (b *Bus) Publish(topic Topic, payload any) {
	b.mu.Lock()
	lst := append([]subscription(nil), b.subs[topic]...)
	b.mu.Unlock()

	metrics.RecordBusPublish(string(topic))

	for _, s := range lst {
		b.invoke(topic, s, payload)
	}
}

func (b *Bus) invoke(topic Topic, s subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordBusSubscriberPanic(string(topic))
			b.logger.Error().
				Str("event", "bus.subscriber_panic").
				Str("topic", string(topic)).
				Int64("subscription_id", s.id).
				Interface("panic", r).
				Msg("subscriber callback panicked")
		}
	}()
	s.fn(payload)
}

// SubscriberCount reports how many callbacks are currently registered for
// topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Clear drops every subscription. Used only at full engine teardown; a
// subsequent Publish reaches zero callbacks.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Topic][]subscription)
}
