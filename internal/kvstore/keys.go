package kvstore

import "fmt"

// Persisted key layout. These prefixes are part of the operational contract:
// tooling and the cleanup scheduler scan them by pattern.
const (
	// MetricsKey holds the serialized cleanup metrics counters.
	MetricsKey = "cleanup_metrics"
	// PoliciesKey holds the serialized retention policy table.
	PoliciesKey = "cleanup_policies"

	snapshotPrefix = "recovery"
	archivePrefix  = "archive"
)

// SnapshotKey returns the key holding the live snapshot for (userID, sessionID).
func SnapshotKey(userID, sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", snapshotPrefix, userID, sessionID)
}

// SnapshotPatternForUser matches every snapshot belonging to a user.
func SnapshotPatternForUser(userID string) string {
	return fmt.Sprintf("%s:%s:*", snapshotPrefix, userID)
}

// SnapshotPatternForSession matches a session's snapshot regardless of owner.
// Used when the caller knows the session but must still verify ownership.
func SnapshotPatternForSession(sessionID string) string {
	return fmt.Sprintf("%s:*:%s", snapshotPrefix, sessionID)
}

// SnapshotPatternAll matches every snapshot in the store.
func SnapshotPatternAll() string {
	return snapshotPrefix + ":*"
}

// ArchiveKey returns the key holding an archive record.
func ArchiveKey(dataType, archiveID string) string {
	return fmt.Sprintf("%s:%s:%s", archivePrefix, dataType, archiveID)
}

// ArchivePattern matches every archive record of the given data type.
func ArchivePattern(dataType string) string {
	return fmt.Sprintf("%s:%s:*", archivePrefix, dataType)
}
