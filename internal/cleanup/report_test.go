package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskhero/deskhero/internal/kvstore"
	"github.com/deskhero/deskhero/internal/recovery"
	"github.com/deskhero/deskhero/internal/store"
)

func reportFor(t *testing.T, report Report, dataType string) TypeReport {
	t.Helper()
	for _, tr := range report.Types {
		if tr.DataType == dataType {
			return tr
		}
	}
	t.Fatalf("no report entry for %s", dataType)
	return TypeReport{}
}

func TestRetentionReportEmptyStores(t *testing.T) {
	f := newFixture(t)

	report, err := f.sched.GetRetentionReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Types, 5)

	for _, tr := range report.Types {
		assert.Zero(t, tr.Total, tr.DataType)
		// No data means full compliance, not division by zero.
		assert.Equal(t, float64(100), tr.RetentionCompliance, tr.DataType)
		assert.Empty(t, tr.Recommendations, tr.DataType)
	}
	assert.False(t, report.GeneratedAt.IsZero())
}

func TestRetentionReportCountsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 1 expired of 4 messages: 75% compliance, below the 95% floor.
	f.insertOldMessage(t, "m-old", "expired")
	for i := 0; i < 3; i++ {
		require.NoError(t, f.db.InsertMessage(ctx, store.Message{
			ID: fmt.Sprintf("m-fresh-%d", i), SessionID: "s", Role: "user", Content: "fresh",
		}))
	}

	report, err := f.sched.GetRetentionReport(ctx, store.DataTypeChatMessages)
	require.NoError(t, err)

	tr := reportFor(t, report, store.DataTypeChatMessages)
	assert.Equal(t, int64(4), tr.Total)
	assert.Equal(t, int64(1), tr.Expired)
	assert.Equal(t, int64(3), tr.Active)
	assert.Equal(t, float64(75), tr.RetentionCompliance)

	// Archive-enabled policy with expired records recommends archiving, and
	// the compliance shortfall is called out.
	require.Len(t, tr.Recommendations, 2)
	assert.Contains(t, tr.Recommendations[0], "Archive 1 expired")
	assert.Contains(t, tr.Recommendations[1], "below the 95% target")
}

func TestRetentionReportCountsSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := recovery.Snapshot{SessionID: "s1", UserID: "u1", Timestamp: time.Now().Add(-8 * 24 * time.Hour)}
	payload, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, f.kv.SetWithExpiry(ctx, kvstore.SnapshotKey("u1", "s1"), string(payload), 0))

	fresh := recovery.Snapshot{SessionID: "s2", UserID: "u1", Timestamp: time.Now()}
	payload, err = json.Marshal(fresh)
	require.NoError(t, err)
	require.NoError(t, f.kv.SetWithExpiry(ctx, kvstore.SnapshotKey("u1", "s2"), string(payload), 0))

	// Unparseable snapshot counts as expired.
	require.NoError(t, f.kv.SetWithExpiry(ctx, kvstore.SnapshotKey("u1", "s3"), "{broken", 0))

	report, err := f.sched.GetRetentionReport(ctx, store.DataTypeRecoverySnapshots)
	require.NoError(t, err)

	tr := reportFor(t, report, store.DataTypeRecoverySnapshots)
	assert.Equal(t, int64(3), tr.Total)
	assert.Equal(t, int64(2), tr.Expired)
	assert.Equal(t, int64(1), tr.Active)
	// Snapshot policy is delete-only: no archive recommendation.
	require.NotEmpty(t, tr.Recommendations)
	assert.Contains(t, tr.Recommendations[0], "Delete 2 expired")
}

func TestRetentionReportCountsArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.insertOldMessage(t, "m1", "expired")
	_, err := f.sched.RunCleanup(ctx, store.DataTypeChatMessages)
	require.NoError(t, err)

	report, err := f.sched.GetRetentionReport(ctx, store.DataTypeChatMessages)
	require.NoError(t, err)

	tr := reportFor(t, report, store.DataTypeChatMessages)
	assert.Equal(t, int64(1), tr.Archived)
}
