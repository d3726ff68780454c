// Package kvstore provides the fast-store client used for recovery snapshots,
// archive records, cleanup metrics and cleanup policies. It is a thin wrapper
// over Redis with expiring keys; durable data lives in the relational store.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key does not exist or has expired.
var ErrKeyNotFound = errors.New("key not found")

// Client is the minimal key-value surface the lifecycle core depends on.
// Implementations must be safe for concurrent use.
type Client interface {
	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// Get returns the value stored at key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	// SetWithExpiry stores value at key with the given time-to-live.
	// A zero ttl stores the key without expiry.
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// KeysByPattern returns all keys matching a glob-style pattern.
	KeysByPattern(ctx context.Context, pattern string) ([]string, error)
	// Close releases the underlying connection.
	Close() error
}
