// Package notify provides a typed notification bus for lifecycle events.
// Consumers register handlers for explicit event types instead of depending
// on dynamically named events.
package notify

import (
	"sync"
	"time"
)

// EventType identifies a lifecycle event.
type EventType string

const (
	// EventSnapshotCreated fires after a snapshot write succeeds.
	EventSnapshotCreated EventType = "snapshot_created"
	// EventSessionRecovered fires after a successful full or partial recovery.
	EventSessionRecovered EventType = "session_recovered"
	// EventCleanupJobCompleted fires once per cleanup job, completed or failed.
	EventCleanupJobCompleted EventType = "cleanup_job_completed"
)

// Event is a single lifecycle notification.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	DataType  string         `json:"data_type,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Bus dispatches events to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates an empty notification bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish delivers the event to every handler registered for its type.
// Publishing with no subscribers is a no-op.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.RLock()
	handlers := b.handlers[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
