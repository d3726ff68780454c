package recovery

import (
	"sync"
	"time"
)

// ConnectionRecord associates a session with its current transport
// connection. Records are owned exclusively by the local process and are
// never persisted.
type ConnectionRecord struct {
	SessionID     string    `json:"sessionId"`
	UserID        string    `json:"userId"`
	SocketID      string    `json:"socketId"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

// ConnectionTable is the insert/lookup/evict surface over connection
// tracking. It exists as an interface so a multi-instance deployment can
// swap the process-local table for an external one without touching the
// coordinator.
type ConnectionTable interface {
	Insert(rec ConnectionRecord)
	Lookup(sessionID string) (ConnectionRecord, bool)
	Touch(sessionID string, at time.Time) bool
	Evict(sessionID string)
	Len() int
	Clear()
}

// memoryTable is the process-local ConnectionTable.
type memoryTable struct {
	mu      sync.RWMutex
	records map[string]ConnectionRecord
}

// NewConnectionTable creates an empty in-memory connection table.
func NewConnectionTable() ConnectionTable {
	return &memoryTable{
		records: make(map[string]ConnectionRecord),
	}
}

func (t *memoryTable) Insert(rec ConnectionRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[rec.SessionID] = rec
}

func (t *memoryTable) Lookup(sessionID string) (ConnectionRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[sessionID]
	return rec, ok
}

// Touch updates the heartbeat timestamp of a tracked session.
// Returns false when the session is not tracked.
func (t *memoryTable) Touch(sessionID string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[sessionID]
	if !ok {
		return false
	}
	rec.LastHeartbeat = at
	t.records[sessionID] = rec
	return true
}

func (t *memoryTable) Evict(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, sessionID)
}

func (t *memoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func (t *memoryTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make(map[string]ConnectionRecord)
}
