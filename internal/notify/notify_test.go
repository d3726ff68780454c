package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(EventSnapshotCreated, func(e Event) {
		got = append(got, e)
	})

	bus.Publish(Event{Type: EventSnapshotCreated, SessionID: "sess-1"})
	bus.Publish(Event{Type: EventSnapshotCreated, SessionID: "sess-2"})

	require.Len(t, got, 2)
	assert.Equal(t, "sess-1", got[0].SessionID)
	assert.Equal(t, "sess-2", got[1].SessionID)
}

func TestBusFiltersByType(t *testing.T) {
	bus := NewBus()

	var snapshots, recoveries int
	bus.Subscribe(EventSnapshotCreated, func(Event) { snapshots++ })
	bus.Subscribe(EventSessionRecovered, func(Event) { recoveries++ })

	bus.Publish(Event{Type: EventSnapshotCreated})
	bus.Publish(Event{Type: EventCleanupJobCompleted})

	assert.Equal(t, 1, snapshots)
	assert.Zero(t, recoveries)
}

func TestBusMultipleHandlersSameType(t *testing.T) {
	bus := NewBus()

	var first, second bool
	bus.Subscribe(EventCleanupJobCompleted, func(Event) { first = true })
	bus.Subscribe(EventCleanupJobCompleted, func(Event) { second = true })

	bus.Publish(Event{Type: EventCleanupJobCompleted})

	assert.True(t, first)
	assert.True(t, second)
}

func TestBusPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	// Must not panic.
	bus.Publish(Event{Type: EventSessionRecovered})
}

func TestBusStampsTimestamp(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(EventSnapshotCreated, func(e Event) { got = e })

	bus.Publish(Event{Type: EventSnapshotCreated})
	assert.False(t, got.Timestamp.IsZero())

	// Explicit timestamps are preserved.
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.Publish(Event{Type: EventSnapshotCreated, Timestamp: fixed})
	assert.Equal(t, fixed, got.Timestamp)
}
