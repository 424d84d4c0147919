// SPDX-License-Identifier: MIT

// Package bridge republishes engine events to Redis pub/sub channels so
// out-of-process observers (dashboards, alerting) can follow the control core
// without linking against it. Forwarding is rate limited so an error storm on
// the bus cannot flood Redis.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/atriumxr/atrium/internal/bus"
	"github.com/atriumxr/atrium/internal/log"
)

// Config holds the Redis connection and forwarding settings.
type Config struct {
	Addr            string
	Password        string
	DB              int
	ChannelPrefix   string
	EventsPerSecond float64
}

// Bridge forwards bus events to Redis.
type Bridge struct {
	client  *redis.Client
	prefix  string
	limiter *rate.Limiter
	logger  zerolog.Logger
	unsubs  []func()
}

// New connects to Redis and returns a bridge ready to Attach.
func New(cfg Config) (*Bridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	prefix := cfg.ChannelPrefix
	if prefix == "" {
		prefix = "atrium.events"
	}
	eps := cfg.EventsPerSecond
	if eps <= 0 {
		eps = 50
	}

	logger := log.WithComponent("bridge")
	logger.Info().
		Str("event", "bridge.connected").
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("channel_prefix", prefix).
		Msg("connected to Redis event bridge")

	return &Bridge{
		client:  client,
		prefix:  prefix,
		limiter: rate.NewLimiter(rate.Limit(eps), int(eps)),
		logger:  logger,
	}, nil
}

// DefaultTopics is the forwarding set used when Attach is called without
// explicit topics.
func DefaultTopics() []bus.Topic {
	return []bus.Topic{
		bus.TopicStateChange,
		bus.TopicError,
		bus.TopicEmergencyCleanup,
		bus.TopicMemoryCheck,
		bus.TopicCleanup,
	}
}

// Attach subscribes the bridge to the given topics.
func (b *Bridge) Attach(events *bus.Bus, topics ...bus.Topic) {
	if len(topics) == 0 {
		topics = DefaultTopics()
	}
	for _, topic := range topics {
		t := topic
		unsub := events.Subscribe(t, func(payload any) {
			b.forward(t, payload)
		})
		b.unsubs = append(b.unsubs, unsub)
	}
}

func (b *Bridge) forward(topic bus.Topic, payload any) {
	if !b.limiter.Allow() {
		b.logger.Debug().
			Str("event", "bridge.rate_limited").
			Str("topic", string(topic)).
			Msg("dropping event (rate limit)")
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn().
			Err(err).
			Str("event", "bridge.marshal_failed").
			Str("topic", string(topic)).
			Msg("dropping unserializable event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	channel := b.prefix + "." + string(topic)
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Warn().
			Err(err).
			Str("event", "bridge.publish_failed").
			Str("channel", channel).
			Msg("failed to forward event")
	}
}

// Close detaches from the bus and closes the Redis connection.
func (b *Bridge) Close() error {
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.unsubs = nil
	return b.client.Close()
}
