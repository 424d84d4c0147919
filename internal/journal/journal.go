// SPDX-License-Identifier: MIT

// Package journal is a badger-backed flight recorder for engine events. It
// subscribes to the bus topics worth keeping for post-mortems (state changes,
// errors, emergency cleanups) and persists them with monotonic keys so the
// most recent records can be read back after a crash.
package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/atriumxr/atrium/internal/bus"
	"github.com/atriumxr/atrium/internal/log"
)

const keyPrefix = "evt:"

// Record is one persisted engine event.
type Record struct {
	ID    string          `json:"id"`
	Topic string          `json:"topic"`
	At    time.Time       `json:"at"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Journal owns the underlying badger store.
type Journal struct {
	db     *badger.DB
	logger zerolog.Logger
	unsubs []func()
}

// Open opens (or creates) the journal store at dir.
func Open(dir string) (*Journal, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open journal store: %w", err)
	}
	return &Journal{
		db:     db,
		logger: log.WithComponent("journal"),
	}, nil
}

// Attach subscribes the journal to the given topics (or a default post-mortem
// set when none are given).
func (j *Journal) Attach(events *bus.Bus, topics ...bus.Topic) {
	if len(topics) == 0 {
		topics = []bus.Topic{
			bus.TopicStateChange,
			bus.TopicError,
			bus.TopicEmergencyCleanup,
		}
	}
	for _, topic := range topics {
		t := topic
		unsub := events.Subscribe(t, func(payload any) {
			j.Append(t, payload)
		})
		j.unsubs = append(j.unsubs, unsub)
	}
}

// Append persists one event. Serialization or write failures are logged and
// swallowed: the journal must never disturb the engine.
func (j *Journal) Append(topic bus.Topic, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		j.logger.Warn().
			Err(err).
			Str("event", "journal.marshal_failed").
			Str("topic", string(topic)).
			Msg("dropping unserializable event")
		return
	}

	now := time.Now()
	rec := Record{
		ID:    uuid.NewString(),
		Topic: string(topic),
		At:    now,
		Data:  data,
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		j.logger.Warn().Err(err).Str("event", "journal.marshal_failed").Msg("dropping record")
		return
	}

	key := []byte(fmt.Sprintf("%s%020d:%s", keyPrefix, now.UnixNano(), rec.ID))
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf)
	}); err != nil {
		j.logger.Warn().
			Err(err).
			Str("event", "journal.write_failed").
			Str("topic", string(topic)).
			Msg("failed to persist event")
	}
}

// Recent returns up to n records, newest first.
func (j *Journal) Recent(n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	prefix := []byte(keyPrefix)
	out := make([]Record, 0, n)

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Seek past the last possible key for the prefix, then walk back.
		seek := append(append([]byte(nil), prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < n; it.Next() {
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return out, nil
}

// ExportSnapshot writes snapshot as indented JSON to path, atomically.
func (j *Journal) ExportSnapshot(path string, snapshot any) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	j.logger.Info().
		Str("event", "journal.snapshot_written").
		Str("path", path).
		Msg("engine snapshot exported")
	return nil
}

// Close detaches from the bus and closes the store.
func (j *Journal) Close() error {
	for _, unsub := range j.unsubs {
		unsub()
	}
	j.unsubs = nil
	return j.db.Close()
}
