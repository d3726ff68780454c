package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deskhero/deskhero/internal/kvstore"
	"github.com/deskhero/deskhero/internal/recovery"
	"github.com/deskhero/deskhero/internal/store"
)

// complianceFloor is the compliance percentage below which a data type is
// flagged in the retention report.
const complianceFloor = 95.0

// GetRetentionReport computes retention posture for the requested data
// types, or every type with a policy when none are given.
func (s *Scheduler) GetRetentionReport(ctx context.Context, dataTypes ...string) (Report, error) {
	if len(dataTypes) == 0 {
		dataTypes = s.policies.DataTypes()
	}

	report := Report{GeneratedAt: time.Now()}
	for _, dataType := range dataTypes {
		policy, ok := s.policies.Policy(dataType)
		if !ok {
			continue
		}

		tr, err := s.reportForType(ctx, policy.DataType, policy.Cutoff(time.Now()))
		if err != nil {
			return report, fmt.Errorf("report for %s: %w", dataType, err)
		}

		if tr.Total > 0 {
			tr.RetentionCompliance = float64(tr.Active) / float64(tr.Total) * 100
		} else {
			tr.RetentionCompliance = 100
		}

		if tr.Expired > 0 {
			if policy.ArchiveEnabled {
				tr.Recommendations = append(tr.Recommendations,
					fmt.Sprintf("Archive %d expired %s records", tr.Expired, tr.DataType))
			}
			if policy.DeleteAfterArchive || !policy.ArchiveEnabled {
				tr.Recommendations = append(tr.Recommendations,
					fmt.Sprintf("Delete %d expired %s records", tr.Expired, tr.DataType))
			}
		}
		if tr.RetentionCompliance < complianceFloor {
			tr.Recommendations = append(tr.Recommendations,
				fmt.Sprintf("Retention compliance for %s is %.1f%%, below the %.0f%% target",
					tr.DataType, tr.RetentionCompliance, complianceFloor))
		}

		report.Types = append(report.Types, tr)
	}
	return report, nil
}

func (s *Scheduler) reportForType(ctx context.Context, dataType string, cutoff time.Time) (TypeReport, error) {
	tr := TypeReport{DataType: dataType}

	if dataType == store.DataTypeRecoverySnapshots {
		total, expired, err := s.countSnapshots(ctx, cutoff)
		if err != nil {
			return tr, err
		}
		tr.Total = total
		tr.Expired = expired
		tr.Active = total - expired
	} else {
		total, err := s.db.CountByType(ctx, dataType)
		if err != nil {
			return tr, err
		}
		expired, err := s.db.CountOlderThan(ctx, dataType, cutoff)
		if err != nil {
			return tr, err
		}
		tr.Total = total
		tr.Expired = expired
		tr.Active = total - expired
	}

	archiveKeys, err := s.kv.KeysByPattern(ctx, kvstore.ArchivePattern(dataType))
	if err != nil {
		return tr, err
	}
	tr.Archived = int64(len(archiveKeys))
	return tr, nil
}

// countSnapshots tallies snapshot keys in the fast store. Unparseable
// snapshots count as expired, matching how cleanup treats them.
func (s *Scheduler) countSnapshots(ctx context.Context, cutoff time.Time) (total, expired int64, err error) {
	keys, err := s.kv.KeysByPattern(ctx, kvstore.SnapshotPatternAll())
	if err != nil {
		return 0, 0, err
	}
	for _, key := range keys {
		raw, err := s.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		total++
		var snap recovery.Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			expired++
			continue
		}
		if snap.Timestamp.Before(cutoff) {
			expired++
		}
	}
	return total, expired, nil
}
