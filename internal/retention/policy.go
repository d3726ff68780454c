// Package retention holds the per-data-category retention rules driving the
// cleanup scheduler. The table is seeded with fixed defaults, mutable at
// runtime, and persisted to the fast store so it survives process restarts.
package retention

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/deskhero/deskhero/internal/kvstore"
	"github.com/deskhero/deskhero/internal/logger"
	"github.com/deskhero/deskhero/internal/store"
)

// Policy is a single retention rule.
type Policy struct {
	DataType               string `json:"dataType"`
	RetentionPeriodDays    int    `json:"retentionPeriodDays"`
	ArchiveEnabled         bool   `json:"archiveEnabled"`
	AnonymizeBeforeArchive bool   `json:"anonymizeBeforeArchive"`
	DeleteAfterArchive     bool   `json:"deleteAfterArchive"`
	CompressionEnabled     bool   `json:"compressionEnabled"`
}

// Update is a partial policy change; nil fields keep their current value.
type Update struct {
	RetentionPeriodDays    *int  `json:"retentionPeriodDays,omitempty"`
	ArchiveEnabled         *bool `json:"archiveEnabled,omitempty"`
	AnonymizeBeforeArchive *bool `json:"anonymizeBeforeArchive,omitempty"`
	DeleteAfterArchive     *bool `json:"deleteAfterArchive,omitempty"`
	CompressionEnabled     *bool `json:"compressionEnabled,omitempty"`
}

// defaults is the seed table. Audit logs keep the regulatory seven-year
// window; recovery snapshots are short-lived and deleted without archival.
func defaults() map[string]Policy {
	return map[string]Policy{
		store.DataTypeSessionContext: {
			DataType: store.DataTypeSessionContext, RetentionPeriodDays: 90,
			ArchiveEnabled: true, AnonymizeBeforeArchive: true, DeleteAfterArchive: false, CompressionEnabled: true,
		},
		store.DataTypeChatMessages: {
			DataType: store.DataTypeChatMessages, RetentionPeriodDays: 180,
			ArchiveEnabled: true, AnonymizeBeforeArchive: true, DeleteAfterArchive: false, CompressionEnabled: true,
		},
		store.DataTypePerformanceMetrics: {
			DataType: store.DataTypePerformanceMetrics, RetentionPeriodDays: 365,
			ArchiveEnabled: true, AnonymizeBeforeArchive: false, DeleteAfterArchive: false, CompressionEnabled: true,
		},
		store.DataTypeRecoverySnapshots: {
			DataType: store.DataTypeRecoverySnapshots, RetentionPeriodDays: 7,
			ArchiveEnabled: false, AnonymizeBeforeArchive: false, DeleteAfterArchive: true, CompressionEnabled: false,
		},
		store.DataTypeAuditLogs: {
			DataType: store.DataTypeAuditLogs, RetentionPeriodDays: 2555,
			ArchiveEnabled: true, AnonymizeBeforeArchive: false, DeleteAfterArchive: false, CompressionEnabled: true,
		},
	}
}

// Engine is the runtime policy table.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]Policy
	kv       kvstore.Client
	log      *logger.Logger
}

// NewEngine creates an engine seeded with the default table.
func NewEngine(kv kvstore.Client, log *logger.Logger) *Engine {
	return &Engine{
		policies: defaults(),
		kv:       kv,
		log:      log,
	}
}

// Load overlays any persisted policy table from the fast store. A missing
// key keeps the defaults; a corrupted table is logged and ignored.
func (e *Engine) Load(ctx context.Context) error {
	raw, err := e.kv.Get(ctx, kvstore.PoliciesKey)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cleanup policies: %w", err)
	}

	var persisted map[string]Policy
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		e.log.Warn("ignoring corrupted persisted policy table")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for dataType, p := range persisted {
		p.DataType = dataType
		e.policies[dataType] = p
	}
	return nil
}

// Policy returns the rule for a data type.
func (e *Engine) Policy(dataType string) (Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.policies[dataType]
	return p, ok
}

// Policies returns all rules sorted by data type.
func (e *Engine) Policies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Policy, 0, len(e.policies))
	for _, p := range e.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DataType < out[j].DataType })
	return out
}

// DataTypes returns all known data types sorted alphabetically.
func (e *Engine) DataTypes() []string {
	policies := e.Policies()
	out := make([]string, 0, len(policies))
	for _, p := range policies {
		out = append(out, p.DataType)
	}
	return out
}

// UpdatePolicy merges a partial update into the existing rule and persists
// the full table.
func (e *Engine) UpdatePolicy(ctx context.Context, dataType string, upd Update) (Policy, error) {
	e.mu.Lock()
	p, ok := e.policies[dataType]
	if !ok {
		e.mu.Unlock()
		return Policy{}, fmt.Errorf("no cleanup policy for data type: %s", dataType)
	}

	if upd.RetentionPeriodDays != nil {
		p.RetentionPeriodDays = *upd.RetentionPeriodDays
	}
	if upd.ArchiveEnabled != nil {
		p.ArchiveEnabled = *upd.ArchiveEnabled
	}
	if upd.AnonymizeBeforeArchive != nil {
		p.AnonymizeBeforeArchive = *upd.AnonymizeBeforeArchive
	}
	if upd.DeleteAfterArchive != nil {
		p.DeleteAfterArchive = *upd.DeleteAfterArchive
	}
	if upd.CompressionEnabled != nil {
		p.CompressionEnabled = *upd.CompressionEnabled
	}
	e.policies[dataType] = p

	snapshot := make(map[string]Policy, len(e.policies))
	for k, v := range e.policies {
		snapshot[k] = v
	}
	e.mu.Unlock()

	if err := e.persist(ctx, snapshot); err != nil {
		return p, err
	}

	e.log.Info("cleanup policy updated",
		logger.Field{Key: "data_type", Value: dataType},
		logger.Field{Key: "retention_days", Value: p.RetentionPeriodDays})
	return p, nil
}

func (e *Engine) persist(ctx context.Context, table map[string]Policy) error {
	payload, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("marshal policy table: %w", err)
	}
	// Policies carry no expiry: they must survive until explicitly changed.
	if err := e.kv.SetWithExpiry(ctx, kvstore.PoliciesKey, string(payload), 0); err != nil {
		return fmt.Errorf("persist policy table: %w", err)
	}
	return nil
}

// RetentionWindow returns the retention duration of a policy.
func (p Policy) RetentionWindow() time.Duration {
	return time.Duration(p.RetentionPeriodDays) * 24 * time.Hour
}

// Cutoff returns the moment before which records of this policy are expired.
func (p Policy) Cutoff(now time.Time) time.Time {
	return now.Add(-p.RetentionWindow())
}
