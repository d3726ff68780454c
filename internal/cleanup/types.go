// Package cleanup runs retention enforcement: archiving, anonymizing,
// compressing and deleting expired records across the fast store and the
// durable store. Archive-then-delete is deliberately not transactional; a
// record is only deleted after its archive write has been confirmed, and an
// orphaned archive left by a failed delete is logged, never rolled back.
package cleanup

import "time"

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job types.
const (
	JobTypeArchive   = "archive"
	JobTypeDelete    = "delete"
	JobTypeAnonymize = "anonymize"
	JobTypeCompress  = "compress"
)

// Job tracks one cleanup pass over a single data type. Jobs are transient
// and resumed best-effort (not guaranteed) across restarts.
type Job struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	DataType         string     `json:"dataType"`
	RecordsProcessed int        `json:"recordsProcessed"`
	RecordsAffected  int        `json:"recordsAffected"`
	Errors           []string   `json:"errors,omitempty"`
	StartedAt        time.Time  `json:"startedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// ArchiveRecord is a retained, possibly anonymized/compressed copy of an
// expired record, stored in the fast store with its own expiry.
type ArchiveRecord struct {
	ID                string    `json:"id"`
	OriginalID        string    `json:"originalId"`
	DataType          string    `json:"dataType"`
	Data              string    `json:"data"`
	ArchivedAt        time.Time `json:"archivedAt"`
	OriginalTimestamp time.Time `json:"originalTimestamp"`
	Anonymized        bool      `json:"anonymized"`
	Compressed        bool      `json:"compressed"`
	RetentionExpiry   time.Time `json:"retentionExpiry"`
}

// Metrics are the cumulative cleanup counters exposed to operations tooling
// and persisted to the fast store across restarts.
type Metrics struct {
	SessionsProcessed       int64     `json:"sessionsProcessed"`
	SessionsArchived        int64     `json:"sessionsArchived"`
	SessionsDeleted         int64     `json:"sessionsDeleted"`
	TotalDataSize           int64     `json:"totalDataSize"`
	CompressionSavings      int64     `json:"compressionSavings"`
	AverageProcessingTimeMs int64     `json:"averageProcessingTimeMs"`
	LastRunAt               time.Time `json:"lastRunAt"`
	ErrorCount              int64     `json:"errorCount"`
	Runs                    int64     `json:"runs"`
}

// TypeReport summarizes retention posture for one data type.
type TypeReport struct {
	DataType            string   `json:"dataType"`
	Total               int64    `json:"total"`
	Active              int64    `json:"active"`
	Expired             int64    `json:"expired"`
	Archived            int64    `json:"archived"`
	RetentionCompliance float64  `json:"retentionCompliance"`
	Recommendations     []string `json:"recommendations,omitempty"`
}

// Report is a full retention report across data types.
type Report struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	Types       []TypeReport `json:"types"`
}
