// Package sessions implements the session manager over the durable store.
// The recovery coordinator talks to it through the recovery.SessionManager
// interface; pausing and resuming are audited.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deskhero/deskhero/internal/logger"
	"github.com/deskhero/deskhero/internal/recovery"
	"github.com/deskhero/deskhero/internal/store"
)

const (
	StatusActive = "active"
	StatusPaused = "paused"
)

// Manager owns session lifecycle state in the durable store.
type Manager struct {
	db  *store.Store
	log *logger.Logger
}

func NewManager(db *store.Store, log *logger.Logger) *Manager {
	return &Manager{db: db, log: log}
}

// GetSessionContext returns the live context of an active session, or nil
// when the session is absent or paused. Absence is not an error.
func (m *Manager) GetSessionContext(ctx context.Context, sessionID string) (*recovery.SessionContext, error) {
	row, err := m.db.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.Status != StatusActive {
		return nil, nil
	}
	return &recovery.SessionContext{
		SessionID: row.ID,
		UserID:    row.UserID,
		State:     json.RawMessage(row.Context),
	}, nil
}

// ResumeSession transitions a session back to active for its owner.
func (m *Manager) ResumeSession(ctx context.Context, sessionID, userID string) error {
	row, err := m.db.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("resume session %s: %w", sessionID, err)
	}
	if row.UserID != userID {
		return fmt.Errorf("resume session %s: user mismatch", sessionID)
	}
	if row.Status == StatusActive {
		return nil
	}
	row.Status = StatusActive
	if err := m.db.UpsertSession(ctx, *row); err != nil {
		return err
	}
	if err := m.db.InsertAudit(ctx, "session_resumed", sessionID, userID); err != nil {
		m.log.Warn("failed to audit session resume",
			logger.Field{Key: "session_id", Value: sessionID})
	}
	return nil
}

// PauseSession transitions a session out of active, recording the reason.
// Pausing an absent session is a no-op.
func (m *Manager) PauseSession(ctx context.Context, sessionID, userID, reason string) error {
	row, err := m.db.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pause session %s: %w", sessionID, err)
	}
	if row.Status == StatusPaused {
		return nil
	}
	row.Status = StatusPaused
	if err := m.db.UpsertSession(ctx, *row); err != nil {
		return err
	}
	if err := m.db.InsertAudit(ctx, "session_paused", sessionID, reason); err != nil {
		m.log.Warn("failed to audit session pause",
			logger.Field{Key: "session_id", Value: sessionID})
	}
	return nil
}
