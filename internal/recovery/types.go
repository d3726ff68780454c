// Package recovery implements snapshot-based crash and disconnect recovery
// for training sessions. A live connection registers with the coordinator,
// which snapshots the session periodically into the fast store; on reconnect
// the snapshot is authorized and rehydrated either fully (no live session)
// or partially (session already active).
package recovery

import (
	"context"
	"encoding/json"
	"time"

	"github.com/deskhero/deskhero/internal/store"
)

// SnapshotVersion tags the snapshot wire format.
const SnapshotVersion = "1.0"

// Snapshot reasons.
const (
	ReasonPeriodic   = "periodic"
	ReasonDisconnect = "disconnect"
	ReasonManual     = "manual"
)

// Recovery outcome types.
const (
	RecoveryFull    = "full"
	RecoveryPartial = "partial"
	RecoveryFailed  = "failed"
)

// User-facing result messages. These are part of the API contract consumed
// by the dashboard, so the exact wording matters.
const (
	msgNoSnapshot    = "No recovery snapshot found for session"
	msgUnauthorized  = "Unauthorized access to session recovery"
	msgSessionActive = "Session already active, skipping context recovery"
)

// SessionContext is the live session state owned by the external session
// manager. State is an opaque blob the coordinator never interprets.
type SessionContext struct {
	SessionID string          `json:"sessionId"`
	UserID    string          `json:"userId"`
	State     json.RawMessage `json:"state"`
}

// SessionManager is the external collaborator owning live session state.
type SessionManager interface {
	// GetSessionContext returns the live context, or nil when no live
	// session exists. Absence is not an error.
	GetSessionContext(ctx context.Context, sessionID string) (*SessionContext, error)
	// ResumeSession resumes a paused session for the given user.
	ResumeSession(ctx context.Context, sessionID, userID string) error
	// PauseSession pauses a live session, recording the reason.
	PauseSession(ctx context.Context, sessionID, userID, reason string) error
}

// SessionRepository is the external collaborator owning chat history.
type SessionRepository interface {
	FindMessagesBySession(ctx context.Context, sessionID string) ([]store.Message, error)
}

// SocketState captures the transport connection at snapshot time.
type SocketState struct {
	Connected     bool      `json:"connected"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	ConnectionID  string    `json:"connectionId,omitempty"`
}

// Metadata tags a snapshot with its provenance.
type Metadata struct {
	SnapshotReason string `json:"snapshotReason"`
	Version        string `json:"version"`
	Checksum       string `json:"checksum"`
}

// Snapshot is a point-in-time capture of a session. Exactly one live
// snapshot exists per (userID, sessionID); every write fully overwrites
// the previous one.
type Snapshot struct {
	SessionID        string          `json:"sessionId"`
	UserID           string          `json:"userId"`
	Timestamp        time.Time       `json:"timestamp"`
	Context          json.RawMessage `json:"context"`
	ChatHistory      []store.Message `json:"chatHistory"`
	SocketState      SocketState     `json:"socketState"`
	RecoveryMetadata Metadata        `json:"recoveryMetadata"`
}

// Options controls what RecoverSession restores.
type Options struct {
	IncludeMessages   bool
	MaxMessageHistory int
	AutoResume        bool
}

// DefaultOptions returns the standard recovery options: messages included,
// capped at 50, with automatic resume.
func DefaultOptions() Options {
	return Options{
		IncludeMessages:   true,
		MaxMessageHistory: 50,
		AutoResume:        true,
	}
}

// Result is the structured outcome of a recovery attempt. Recovery never
// returns a Go error; failures are carried in Errors.
type Result struct {
	Success          bool            `json:"success"`
	RecoveryType     string          `json:"recoveryType"` // full | partial | failed
	SessionID        string          `json:"sessionId"`
	RestoredContext  json.RawMessage `json:"restoredContext,omitempty"`
	RestoredMessages []store.Message `json:"restoredMessages,omitempty"`
	Warnings         []string        `json:"warnings,omitempty"`
	Errors           []string        `json:"errors,omitempty"`
}

// Status describes whether a session can currently be recovered.
type Status struct {
	HasSnapshot       bool              `json:"hasSnapshot"`
	LastSnapshot      int64             `json:"lastSnapshot"` // unix ms, 0 if none
	RecoveryAvailable bool              `json:"recoveryAvailable"`
	ConnectionState   *ConnectionRecord `json:"connectionState"` // nil if untracked
}
