package recovery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/deskhero/deskhero/internal/kvstore"
	"github.com/deskhero/deskhero/internal/logger"
	"github.com/deskhero/deskhero/internal/metrics"
	"github.com/deskhero/deskhero/internal/notify"
	"github.com/deskhero/deskhero/internal/retry"
)

// Config holds coordinator tuning.
type Config struct {
	// SnapshotTTL is the expiry applied to every snapshot write. The
	// recovery_snapshots retention policy additionally prunes by timestamp
	// during cleanup runs; the write TTL is authoritative for the fast store.
	SnapshotTTL time.Duration
	// SnapshotInterval is the cadence of periodic snapshots for tracked
	// connections.
	SnapshotInterval time.Duration
	// MaxMessageHistory caps the chat history restored by reconnect-driven
	// recovery. Explicit Options passed to RecoverSession are not affected.
	MaxMessageHistory int
}

const (
	defaultSnapshotTTL       = 24 * time.Hour
	defaultSnapshotInterval  = 30 * time.Second
	defaultMaxMessageHistory = 50
)

// Coordinator orchestrates snapshot creation and recovery decisions.
//
// Every public operation is safe to call concurrently. Ordering within a
// single session's snapshot/recover sequence is the caller's responsibility;
// no per-session lock is held.
type Coordinator struct {
	kv       kvstore.Client
	sessions SessionManager
	repo     SessionRepository
	conns    ConnectionTable
	log      *logger.Logger
	metrics  *metrics.Metrics
	bus      *notify.Bus
	cfg      Config

	mu    sync.Mutex
	loops map[string]context.CancelFunc
}

// NewCoordinator wires a coordinator from its dependencies. metrics and bus
// may be nil when observability is not needed (tests, tooling).
func NewCoordinator(
	kv kvstore.Client,
	sessions SessionManager,
	repo SessionRepository,
	conns ConnectionTable,
	bus *notify.Bus,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) *Coordinator {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = defaultSnapshotTTL
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = defaultSnapshotInterval
	}
	if cfg.MaxMessageHistory <= 0 {
		cfg.MaxMessageHistory = defaultMaxMessageHistory
	}
	return &Coordinator{
		kv:       kv,
		sessions: sessions,
		repo:     repo,
		conns:    conns,
		log:      log,
		metrics:  m,
		bus:      bus,
		cfg:      cfg,
		loops:    make(map[string]context.CancelFunc),
	}
}

// Initialize verifies the fast store is reachable. This is the one call
// allowed to fail fatally: an unreachable store voids every recovery
// guarantee, so the error propagates to the caller.
func (c *Coordinator) Initialize(ctx context.Context) error {
	err := retry.Do(ctx, func() error {
		return c.kv.Ping(ctx)
	}, retry.Config{})
	if err != nil {
		return fmt.Errorf("recovery store unreachable: %w", err)
	}
	c.log.Info("recovery coordinator initialized",
		logger.Field{Key: "snapshot_ttl", Value: c.cfg.SnapshotTTL.String()},
		logger.Field{Key: "snapshot_interval", Value: c.cfg.SnapshotInterval.String()})
	return nil
}

// CreateSnapshot captures the session's live context, chat history and
// connection state into the fast store. Absence of a live session is not an
// error: the session may never have existed. All failures are logged and
// swallowed; snapshot creation never propagates an error to its caller.
func (c *Coordinator) CreateSnapshot(ctx context.Context, sessionID, reason string) {
	if reason == "" {
		reason = ReasonPeriodic
	}

	sc, err := c.sessions.GetSessionContext(ctx, sessionID)
	if err != nil {
		c.snapshotFailed(sessionID, reason, err)
		return
	}
	if sc == nil {
		c.log.Debug("no live context, skipping snapshot",
			logger.Field{Key: "session_id", Value: sessionID})
		return
	}

	history, err := c.repo.FindMessagesBySession(ctx, sessionID)
	if err != nil {
		c.snapshotFailed(sessionID, reason, err)
		return
	}

	contextBlob, err := json.Marshal(sc)
	if err != nil {
		c.snapshotFailed(sessionID, reason, err)
		return
	}

	socketState := SocketState{Connected: false}
	if rec, ok := c.conns.Lookup(sessionID); ok {
		socketState = SocketState{
			Connected:     true,
			LastHeartbeat: rec.LastHeartbeat,
			ConnectionID:  rec.SocketID,
		}
	}

	snap := Snapshot{
		SessionID:   sessionID,
		UserID:      sc.UserID,
		Timestamp:   time.Now(),
		Context:     contextBlob,
		ChatHistory: history,
		SocketState: socketState,
		RecoveryMetadata: Metadata{
			SnapshotReason: reason,
			Version:        SnapshotVersion,
			Checksum:       checksum(contextBlob),
		},
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		c.snapshotFailed(sessionID, reason, err)
		return
	}

	key := kvstore.SnapshotKey(sc.UserID, sessionID)
	if err := c.kv.SetWithExpiry(ctx, key, string(payload), c.cfg.SnapshotTTL); err != nil {
		c.snapshotFailed(sessionID, reason, err)
		return
	}

	if c.metrics != nil {
		c.metrics.SnapshotsTotal.WithLabelValues(reason).Inc()
	}
	if c.bus != nil {
		c.bus.Publish(notify.Event{
			Type:      notify.EventSnapshotCreated,
			SessionID: sessionID,
			Metadata:  map[string]any{"reason": reason, "user_id": sc.UserID},
		})
	}
	c.log.Debug("snapshot created",
		logger.Field{Key: "session_id", Value: sessionID},
		logger.Field{Key: "reason", Value: reason},
		logger.Field{Key: "messages", Value: len(history)})
}

func (c *Coordinator) snapshotFailed(sessionID, reason string, err error) {
	if c.metrics != nil {
		c.metrics.SnapshotErrors.Inc()
	}
	c.log.Error("snapshot creation failed", err,
		logger.Field{Key: "session_id", Value: sessionID},
		logger.Field{Key: "reason", Value: reason})
}

// RecoverSession attempts to rehydrate a session from its snapshot. It never
// returns a Go error; every failure mode is reported inside the Result.
func (c *Coordinator) RecoverSession(ctx context.Context, sessionID, userID string, opts Options) Result {
	res, err := c.recover(ctx, sessionID, userID, opts)
	if err != nil {
		res = Result{
			Success:      false,
			RecoveryType: RecoveryFailed,
			SessionID:    sessionID,
			Errors:       []string{"Recovery failed: " + err.Error()},
		}
	}
	if c.metrics != nil {
		c.metrics.RecoveriesTotal.WithLabelValues(res.RecoveryType).Inc()
	}
	if res.Success && c.bus != nil {
		c.bus.Publish(notify.Event{
			Type:      notify.EventSessionRecovered,
			SessionID: sessionID,
			Metadata:  map[string]any{"recovery_type": res.RecoveryType},
		})
	}
	return res
}

func (c *Coordinator) recover(ctx context.Context, sessionID, userID string, opts Options) (Result, error) {
	snap, found, err := c.findSnapshot(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{
			Success:      false,
			RecoveryType: RecoveryFailed,
			SessionID:    sessionID,
			Errors:       []string{msgNoSnapshot},
		}, nil
	}

	// Authorization comes before any other decision: a snapshot owned by a
	// different user must never leak context or messages.
	if snap.UserID != userID {
		c.log.Warn("unauthorized recovery attempt",
			logger.Field{Key: "session_id", Value: sessionID},
			logger.Field{Key: "user_id", Value: userID})
		return Result{
			Success:      false,
			RecoveryType: RecoveryFailed,
			SessionID:    sessionID,
			Errors:       []string{msgUnauthorized},
		}, nil
	}

	res := Result{
		Success:   true,
		SessionID: sessionID,
	}

	live, err := c.sessions.GetSessionContext(ctx, sessionID)
	if err != nil {
		return Result{}, err
	}

	if live != nil {
		res.RecoveryType = RecoveryPartial
		res.Warnings = append(res.Warnings, msgSessionActive)
	} else {
		res.RecoveryType = RecoveryFull
		res.RestoredContext = snap.Context
		if opts.AutoResume {
			if err := c.sessions.ResumeSession(ctx, sessionID, userID); err != nil {
				return Result{}, err
			}
		}
	}

	if opts.IncludeMessages {
		msgs := snap.ChatHistory
		if opts.MaxMessageHistory > 0 && len(msgs) > opts.MaxMessageHistory {
			msgs = msgs[len(msgs)-opts.MaxMessageHistory:]
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("Chat history truncated to last %d messages", opts.MaxMessageHistory))
		}
		res.RestoredMessages = msgs
	}

	c.log.Info("session recovered",
		logger.Field{Key: "session_id", Value: sessionID},
		logger.Field{Key: "recovery_type", Value: res.RecoveryType},
		logger.Field{Key: "messages", Value: len(res.RestoredMessages)})

	return res, nil
}

// findSnapshot locates a session's snapshot regardless of owner so the
// caller can distinguish "absent" from "owned by somebody else".
func (c *Coordinator) findSnapshot(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	keys, err := c.kv.KeysByPattern(ctx, kvstore.SnapshotPatternForSession(sessionID))
	if err != nil {
		return Snapshot{}, false, err
	}
	if len(keys) == 0 {
		return Snapshot{}, false, nil
	}

	raw, err := c.kv.Get(ctx, keys[0])
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		// Expired between scan and read.
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("corrupted snapshot for session %s: %w", sessionID, err)
	}
	return snap, true, nil
}

// defaultOptions derives recovery options from the coordinator's
// configuration. Only the history cap is configurable; messages are always
// included and the session resumed.
func (c *Coordinator) defaultOptions() Options {
	opts := DefaultOptions()
	opts.MaxMessageHistory = c.cfg.MaxMessageHistory
	return opts
}

// RestoreFromDisconnect recovers a session after a transport reconnect and
// re-associates the connection record with the new socket.
func (c *Coordinator) RestoreFromDisconnect(ctx context.Context, sessionID, userID, newSocketID string) Result {
	res := c.RecoverSession(ctx, sessionID, userID, c.defaultOptions())
	if res.Success {
		c.TrackConnection(sessionID, userID, newSocketID)
	}
	return res
}

// TrackConnection upserts the connection record for a session and arms the
// periodic snapshot loop.
func (c *Coordinator) TrackConnection(sessionID, userID, socketID string) {
	c.conns.Insert(ConnectionRecord{
		SessionID:     sessionID,
		UserID:        userID,
		SocketID:      socketID,
		LastHeartbeat: time.Now(),
	})
	if c.metrics != nil {
		c.metrics.TrackedSessions.Set(float64(c.conns.Len()))
	}
	c.armSnapshotLoop(sessionID)
	c.log.Debug("connection tracked",
		logger.Field{Key: "session_id", Value: sessionID},
		logger.Field{Key: "socket_id", Value: socketID})
}

// armSnapshotLoop starts the supervised periodic snapshot goroutine for a
// session. Re-arming an already armed session is a no-op.
func (c *Coordinator) armSnapshotLoop(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.loops[sessionID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.loops[sessionID] = cancel

	go func() {
		ticker := time.NewTicker(c.cfg.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CreateSnapshot(ctx, sessionID, ReasonPeriodic)
			}
		}
	}()
}

// stopSnapshotLoop cancels the periodic snapshot loop for a session.
func (c *Coordinator) stopSnapshotLoop(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.loops[sessionID]; ok {
		cancel()
		delete(c.loops, sessionID)
	}
}

// UpdateHeartbeat refreshes the heartbeat timestamp of a tracked session.
// Untracked sessions are a no-op.
func (c *Coordinator) UpdateHeartbeat(sessionID string) {
	c.conns.Touch(sessionID, time.Now())
}

// HandleDisconnect pauses the live session and writes a final snapshot.
// Untracked sessions are a no-op: there is no UNTRACKED to DISCONNECTED edge.
func (c *Coordinator) HandleDisconnect(ctx context.Context, sessionID, reason string) {
	rec, ok := c.conns.Lookup(sessionID)
	if !ok {
		return
	}

	c.stopSnapshotLoop(sessionID)
	c.conns.Evict(sessionID)
	if c.metrics != nil {
		c.metrics.TrackedSessions.Set(float64(c.conns.Len()))
	}

	// Snapshot first: pausing removes the live context the snapshot needs.
	c.CreateSnapshot(ctx, sessionID, ReasonDisconnect)

	if err := c.sessions.PauseSession(ctx, sessionID, rec.UserID, reason); err != nil {
		c.log.Error("failed to pause session on disconnect", err,
			logger.Field{Key: "session_id", Value: sessionID})
	}

	c.log.Info("session disconnected",
		logger.Field{Key: "session_id", Value: sessionID},
		logger.Field{Key: "reason", Value: reason})
}

// GetRecoveryStatus reports snapshot and connection state for a session.
// It never fails: store errors degrade to "no snapshot".
func (c *Coordinator) GetRecoveryStatus(ctx context.Context, sessionID string) Status {
	status := Status{}

	if rec, ok := c.conns.Lookup(sessionID); ok {
		status.ConnectionState = &rec
	}

	snap, found, err := c.findSnapshot(ctx, sessionID)
	if err != nil || !found {
		return status
	}

	status.HasSnapshot = true
	status.LastSnapshot = snap.Timestamp.UnixMilli()
	status.RecoveryAvailable = true
	return status
}

// ListRecoverableSessions returns every parseable snapshot belonging to a
// user, most recent first. Corrupted entries are skipped individually and
// never abort the listing.
func (c *Coordinator) ListRecoverableSessions(ctx context.Context, userID string) []Snapshot {
	keys, err := c.kv.KeysByPattern(ctx, kvstore.SnapshotPatternForUser(userID))
	if err != nil {
		c.log.Error("failed to list snapshots", err,
			logger.Field{Key: "user_id", Value: userID})
		return nil
	}

	var snaps []Snapshot
	for _, key := range keys {
		raw, err := c.kv.Get(ctx, key)
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			c.log.Warn("skipping corrupted snapshot",
				logger.Field{Key: "key", Value: key})
			continue
		}
		snaps = append(snaps, snap)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.After(snaps[j].Timestamp)
	})
	return snaps
}

// CleanupExpiredSnapshots deletes every snapshot older than maxAge plus any
// that fail to parse, returning the number of snapshots examined and the
// number deleted. Corrupted records are treated like expired ones.
func (c *Coordinator) CleanupExpiredSnapshots(ctx context.Context, maxAge time.Duration) (int, int, error) {
	keys, err := c.kv.KeysByPattern(ctx, kvstore.SnapshotPatternAll())
	if err != nil {
		return 0, 0, fmt.Errorf("scan snapshots: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	for _, key := range keys {
		raw, err := c.kv.Get(ctx, key)
		if err != nil {
			continue
		}

		var snap Snapshot
		expired := false
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			expired = true // corrupted counts as expired
		} else if snap.Timestamp.Before(cutoff) {
			expired = true
		}

		if !expired {
			continue
		}
		if err := c.kv.Delete(ctx, key); err != nil {
			c.log.Error("failed to delete expired snapshot", err,
				logger.Field{Key: "key", Value: key})
			continue
		}
		deleted++
	}

	if deleted > 0 {
		c.log.Info("expired snapshots cleaned",
			logger.Field{Key: "scanned", Value: len(keys)},
			logger.Field{Key: "deleted", Value: deleted})
	}
	return len(keys), deleted, nil
}

// Cleanup stops all snapshot loops, clears connection tracking and releases
// the store connection.
func (c *Coordinator) Cleanup() error {
	c.mu.Lock()
	for id, cancel := range c.loops {
		cancel()
		delete(c.loops, id)
	}
	c.mu.Unlock()

	c.conns.Clear()
	if c.metrics != nil {
		c.metrics.TrackedSessions.Set(0)
	}
	return c.kv.Close()
}

// checksum returns the hex SHA-256 of the snapshot context blob.
func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
