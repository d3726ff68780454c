package cleanup

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/deskhero/deskhero/internal/kvstore"
	"github.com/deskhero/deskhero/internal/logger"
	"github.com/deskhero/deskhero/internal/retention"
	"github.com/deskhero/deskhero/internal/store"
)

// archiveExpiredRecord writes one expired durable row into the archive
// namespace, applying the policy's anonymization and compression.
func (s *Scheduler) archiveExpiredRecord(ctx context.Context, policy retention.Policy, rec store.ExpiredRecord) error {
	data := rec.Payload
	if policy.AnonymizeBeforeArchive {
		data = Anonymize(data)
	}

	originalSize := int64(len(data))
	compressed := false
	if policy.CompressionEnabled {
		packed, err := compress(data)
		if err != nil {
			return fmt.Errorf("compress: %w", err)
		}
		data = packed
		compressed = true
	}

	record := ArchiveRecord{
		ID:                uuid.New().String(),
		OriginalID:        rec.ID,
		DataType:          policy.DataType,
		Data:              data,
		ArchivedAt:        time.Now(),
		OriginalTimestamp: rec.Timestamp,
		Anonymized:        policy.AnonymizeBeforeArchive,
		Compressed:        compressed,
		RetentionExpiry:   time.Now().Add(policy.RetentionWindow()),
	}

	if err := s.writeArchiveRecord(ctx, record); err != nil {
		return err
	}

	s.mu.Lock()
	s.stats.TotalDataSize += originalSize
	if compressed {
		s.stats.CompressionSavings += originalSize - int64(len(data))
	}
	s.mu.Unlock()
	return nil
}

// ArchiveSession gathers a session's context, chat messages and performance
// metrics from the durable store and writes one archive record per category.
// Used both by retention enforcement and by on-demand archival before a
// session delete.
func (s *Scheduler) ArchiveSession(ctx context.Context, sessionID string, anonymize bool) ([]ArchiveRecord, error) {
	session, err := s.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("gather session %s: %w", sessionID, err)
	}
	messages, err := s.db.FindMessagesBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("gather messages for %s: %w", sessionID, err)
	}
	perfMetrics, err := s.db.FindMetricsBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("gather metrics for %s: %w", sessionID, err)
	}

	categories := []struct {
		dataType string
		payload  any
	}{
		{store.DataTypeSessionContext, session},
		{store.DataTypeChatMessages, messages},
		{store.DataTypePerformanceMetrics, perfMetrics},
	}

	var records []ArchiveRecord
	for _, cat := range categories {
		policy, ok := s.policies.Policy(cat.dataType)
		if !ok {
			continue
		}

		raw, err := json.Marshal(cat.payload)
		if err != nil {
			return records, fmt.Errorf("marshal %s for %s: %w", cat.dataType, sessionID, err)
		}

		data := string(raw)
		if anonymize {
			data = Anonymize(data)
		}

		originalSize := int64(len(data))
		compressed := false
		if policy.CompressionEnabled {
			data, err = compress(data)
			if err != nil {
				return records, fmt.Errorf("compress %s for %s: %w", cat.dataType, sessionID, err)
			}
			compressed = true
		}

		record := ArchiveRecord{
			ID:                uuid.New().String(),
			OriginalID:        sessionID,
			DataType:          cat.dataType,
			Data:              data,
			ArchivedAt:        time.Now(),
			OriginalTimestamp: session.UpdatedAt,
			Anonymized:        anonymize,
			Compressed:        compressed,
			RetentionExpiry:   time.Now().Add(policy.RetentionWindow()),
		}
		if err := s.writeArchiveRecord(ctx, record); err != nil {
			return records, err
		}
		records = append(records, record)

		s.mu.Lock()
		s.stats.TotalDataSize += originalSize
		if compressed {
			s.stats.CompressionSavings += originalSize - int64(len(data))
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.stats.SessionsArchived++
	s.mu.Unlock()

	s.log.Info("session archived",
		logger.Field{Key: "session_id", Value: sessionID},
		logger.Field{Key: "categories", Value: len(records)},
		logger.Field{Key: "anonymized", Value: anonymize})
	return records, nil
}

// writeArchiveRecord stores an archive record with a TTL equal to its
// remaining retention window.
func (s *Scheduler) writeArchiveRecord(ctx context.Context, record ArchiveRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal archive record: %w", err)
	}
	ttl := time.Until(record.RetentionExpiry)
	if ttl <= 0 {
		ttl = time.Minute
	}
	key := kvstore.ArchiveKey(record.DataType, record.ID)
	if err := s.kv.SetWithExpiry(ctx, key, string(payload), ttl); err != nil {
		return fmt.Errorf("write archive record %s: %w", record.ID, err)
	}
	return nil
}

// DeleteSession irreversibly removes a session from both stores and writes
// an audit entry. Callers relying on retention must archive first.
func (s *Scheduler) DeleteSession(ctx context.Context, sessionID, reason string) error {
	keys, err := s.kv.KeysByPattern(ctx, kvstore.SnapshotPatternForSession(sessionID))
	if err != nil {
		return fmt.Errorf("scan session keys for %s: %w", sessionID, err)
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("delete fast-store keys for %s: %w", sessionID, err)
	}

	rows, err := s.db.DeleteSessionData(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("delete durable rows for %s: %w", sessionID, err)
	}

	if err := s.db.InsertAudit(ctx, "session_deleted", sessionID, reason); err != nil {
		return fmt.Errorf("audit session delete for %s: %w", sessionID, err)
	}

	s.mu.Lock()
	s.stats.SessionsDeleted++
	s.mu.Unlock()

	s.log.Info("session deleted",
		logger.Field{Key: "session_id", Value: sessionID},
		logger.Field{Key: "reason", Value: reason},
		logger.Field{Key: "rows", Value: rows})
	return nil
}

// compress gzips data and base64-encodes the result for JSON transport.
func compress(data string) (string, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(data)); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decompress reverses compress. Exposed for operations tooling that needs
// to inspect archived payloads.
func Decompress(data string) (string, error) {
	packed, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode archive data: %w", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(packed))
	if err != nil {
		return "", fmt.Errorf("open archive data: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read archive data: %w", err)
	}
	return string(out), nil
}
