package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionRow is a durable session record.
type SessionRow struct {
	ID        string
	UserID    string
	Context   string // opaque JSON blob owned by the session manager
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single chat message, ordered by insertion within a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MetricRow is a single performance metric sample.
type MetricRow struct {
	ID        string
	SessionID string
	UserID    string
	Name      string
	Value     float64
	CreatedAt time.Time
}

// UpsertSession inserts or replaces a session row.
func (s *Store) UpsertSession(ctx context.Context, row SessionRow) error {
	now := time.Now()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	if row.Status == "" {
		row.Status = "active"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, context_json, status, created_at_ms, updated_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			context_json = excluded.context_json,
			status = excluded.status,
			updated_at_ms = excluded.updated_at_ms`,
		row.ID, row.UserID, row.Context, row.Status,
		row.CreatedAt.UnixMilli(), row.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", row.ID, err)
	}
	return nil
}

// GetSession returns the session row or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionRow, error) {
	var (
		row       SessionRow
		createdMs int64
		updatedMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, context_json, status, created_at_ms, updated_at_ms
		 FROM sessions WHERE id = ?`, sessionID).
		Scan(&row.ID, &row.UserID, &row.Context, &row.Status, &createdMs, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	row.CreatedAt = time.UnixMilli(createdMs)
	row.UpdatedAt = time.UnixMilli(updatedMs)
	return &row, nil
}

// InsertMessage appends a chat message to a session. An empty ID is filled in.
func (s *Store) InsertMessage(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, created_at_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// FindMessagesBySession returns all messages of a session in insertion order.
func (s *Store) FindMessagesBySession(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at_ms
		 FROM messages WHERE session_id = ?
		 ORDER BY created_at_ms ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find messages for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var (
			msg       Message
			createdMs int64
		)
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &createdMs); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.UnixMilli(createdMs)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// InsertMetric records a performance metric sample.
func (s *Store) InsertMetric(ctx context.Context, m MetricRow) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO metrics (id, session_id, user_id, name, value, created_at_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.UserID, m.Name, m.Value, m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// FindMetricsBySession returns all metric samples of a session in insertion order.
func (s *Store) FindMetricsBySession(ctx context.Context, sessionID string) ([]MetricRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, name, value, created_at_ms
		 FROM metrics WHERE session_id = ?
		 ORDER BY created_at_ms ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find metrics for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var metrics []MetricRow
	for rows.Next() {
		var (
			m         MetricRow
			createdMs int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Name, &m.Value, &createdMs); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.CreatedAt = time.UnixMilli(createdMs)
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// DeleteSessionData removes the session row plus all messages and metrics
// belonging to it. Returns the total number of rows removed.
func (s *Store) DeleteSessionData(ctx context.Context, sessionID string) (int64, error) {
	var total int64
	for _, q := range []string{
		`DELETE FROM messages WHERE session_id = ?`,
		`DELETE FROM metrics WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, sessionID)
		if err != nil {
			return total, fmt.Errorf("delete session data %s: %w", sessionID, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// InsertAudit appends an audit log entry.
func (s *Store) InsertAudit(ctx context.Context, action, sessionID, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, session_id, detail, created_at_ms)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), action, sessionID, detail, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
