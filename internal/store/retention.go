package store

import (
	"context"
	"fmt"
	"time"
)

// ExpiredRecord is the generic shape handed to the cleanup scheduler: one
// durable row that has outlived its retention window. Payload is the row
// serialized as JSON, ready for archival.
type ExpiredRecord struct {
	ID        string
	SessionID string
	Timestamp time.Time
	Payload   string
}

// tableSpec maps a retention data type onto its table. payloadExpr selects
// the full row as a JSON object so expired rows can be archived verbatim.
type tableSpec struct {
	table       string
	ageCol      string
	idCol       string
	sessCol     string
	payloadExpr string
}

var tables = map[string]tableSpec{
	DataTypeSessionContext: {
		table: "sessions", ageCol: "updated_at_ms", idCol: "id", sessCol: "id",
		payloadExpr: `json_object('id', id, 'userId', user_id, 'context', context_json, 'status', status, 'createdAt', created_at_ms, 'updatedAt', updated_at_ms)`,
	},
	DataTypeChatMessages: {
		table: "messages", ageCol: "created_at_ms", idCol: "id", sessCol: "session_id",
		payloadExpr: `json_object('id', id, 'sessionId', session_id, 'role', role, 'content', content, 'createdAt', created_at_ms)`,
	},
	DataTypePerformanceMetrics: {
		table: "metrics", ageCol: "created_at_ms", idCol: "id", sessCol: "session_id",
		payloadExpr: `json_object('id', id, 'sessionId', session_id, 'userId', user_id, 'name', name, 'value', value, 'createdAt', created_at_ms)`,
	},
	DataTypeAuditLogs: {
		table: "audit_log", ageCol: "created_at_ms", idCol: "id", sessCol: "session_id",
		payloadExpr: `json_object('id', id, 'action', action, 'sessionId', session_id, 'detail', detail, 'createdAt', created_at_ms)`,
	},
}

// SupportsDataType reports whether the durable store holds rows of this type.
// recovery_snapshots live in the fast store only.
func SupportsDataType(dataType string) bool {
	_, ok := tables[dataType]
	return ok
}

// CountByType returns the total number of rows of a data type.
func (s *Store) CountByType(ctx context.Context, dataType string) (int64, error) {
	spec, ok := tables[dataType]
	if !ok {
		return 0, fmt.Errorf("unknown data type: %s", dataType)
	}
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+spec.table).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", dataType, err)
	}
	return n, nil
}

// CountOlderThan returns how many rows of a data type predate cutoff.
func (s *Store) CountOlderThan(ctx context.Context, dataType string, cutoff time.Time) (int64, error) {
	spec, ok := tables[dataType]
	if !ok {
		return 0, fmt.Errorf("unknown data type: %s", dataType)
	}
	var n int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s < ?", spec.table, spec.ageCol),
		cutoff.UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expired %s: %w", dataType, err)
	}
	return n, nil
}

// FindOlderThan returns up to limit rows of a data type older than cutoff,
// oldest first. limit <= 0 means no limit.
func (s *Store) FindOlderThan(ctx context.Context, dataType string, cutoff time.Time, limit int) ([]ExpiredRecord, error) {
	spec, ok := tables[dataType]
	if !ok {
		return nil, fmt.Errorf("unknown data type: %s", dataType)
	}

	query := fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s WHERE %s < ? ORDER BY %s ASC",
		spec.idCol, spec.sessCol, spec.ageCol, spec.payloadExpr, spec.table, spec.ageCol, spec.ageCol)
	args := []any{cutoff.UnixMilli()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find expired %s: %w", dataType, err)
	}
	defer rows.Close()

	var records []ExpiredRecord
	for rows.Next() {
		var (
			rec   ExpiredRecord
			ageMs int64
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &ageMs, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan expired %s: %w", dataType, err)
		}
		rec.Timestamp = time.UnixMilli(ageMs)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteByID removes a single row of a data type.
func (s *Store) DeleteByID(ctx context.Context, dataType, id string) error {
	spec, ok := tables[dataType]
	if !ok {
		return fmt.Errorf("unknown data type: %s", dataType)
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", spec.table, spec.idCol), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", dataType, id, err)
	}
	return nil
}
