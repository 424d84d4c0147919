// SPDX-License-Identifier: MIT

package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumxr/atrium/internal/bus"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAndRecent(t *testing.T) {
	j := openTestJournal(t)

	j.Append(bus.TopicStateChange, bus.StateChange{From: "Loading", To: "Ready"})
	time.Sleep(time.Millisecond) // distinct nanosecond keys
	j.Append(bus.TopicStateChange, bus.StateChange{From: "Ready", To: "Exploring"})
	time.Sleep(time.Millisecond)
	j.Append(bus.TopicError, bus.ErrorReported{Kind: "NetworkError", Count: 1})

	records, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first.
	assert.Equal(t, "error", records[0].Topic)
	assert.Equal(t, "stateChange", records[1].Topic)
	assert.Equal(t, "stateChange", records[2].Topic)

	var change bus.StateChange
	require.NoError(t, json.Unmarshal(records[1].Data, &change))
	assert.Equal(t, "Ready", change.From)
	assert.Equal(t, "Exploring", change.To)

	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.False(t, rec.At.IsZero())
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	j := openTestJournal(t)
	for i := 0; i < 5; i++ {
		j.Append(bus.TopicMemoryCheck, bus.MemoryCheck{Usage: float64(i) / 10})
		time.Sleep(time.Millisecond)
	}

	records, err := j.Recent(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = j.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecentOnEmptyJournal(t *testing.T) {
	j := openTestJournal(t)
	records, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAttachRecordsBusEvents(t *testing.T) {
	j := openTestJournal(t)
	events := bus.New()
	j.Attach(events)

	events.Publish(bus.TopicStateChange, bus.StateChange{From: "Initializing", To: "Loading"})
	events.Publish(bus.TopicPause, bus.Paused{From: "Exploring"}) // not in the default set

	records, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "stateChange", records[0].Topic)
}

func TestAttachExplicitTopics(t *testing.T) {
	j := openTestJournal(t)
	events := bus.New()
	j.Attach(events, bus.TopicCleanup)

	events.Publish(bus.TopicCleanup, bus.CleanupDone{})
	events.Publish(bus.TopicStateChange, bus.StateChange{From: "a", To: "b"})

	records, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "cleanup", records[0].Topic)
}

func TestUnserializablePayloadIsDropped(t *testing.T) {
	j := openTestJournal(t)

	j.Append(bus.TopicStateChange, func() {}) // funcs cannot marshal

	records, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCloseDetachesFromBus(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	require.NoError(t, err)

	events := bus.New()
	j.Attach(events)
	require.Equal(t, 1, events.SubscriberCount(bus.TopicStateChange))

	require.NoError(t, j.Close())
	assert.Equal(t, 0, events.SubscriberCount(bus.TopicStateChange))

	// Publishing after close must not panic (no subscriber left).
	assert.NotPanics(t, func() {
		events.Publish(bus.TopicStateChange, bus.StateChange{})
	})
}

func TestExportSnapshot(t *testing.T) {
	j := openTestJournal(t)
	path := filepath.Join(t.TempDir(), "snapshot.json")

	snapshot := map[string]any{"state": "Exploring", "errors": 2}
	require.NoError(t, j.ExportSnapshot(path, snapshot))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Exploring", got["state"])
	assert.Equal(t, float64(2), got["errors"])
}
