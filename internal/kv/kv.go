// Package kv defines the key-value contract backing the telemetry core:
// expiring values, append-only lists with bounded range reads, and key
// expiry. Two implementations exist, a Redis-backed store for real
// deployments and an in-process store for tests and demos.
package kv

import (
	"context"
	"time"
)

// Store is the minimal surface the telemetry core needs from its
// backing store. All operations are atomic per key. Implementations
// map a missing key to errors.ErrNotFound and backend outages to
// errors.ErrUnavailable.
type Store interface {
	// Set stores value under key with the given TTL. A zero TTL means
	// no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// ListAppend appends values to the tail of the list at key,
	// creating the list if absent.
	ListAppend(ctx context.Context, key string, values ...string) error

	// ListRange returns list elements in [start, stop] (inclusive,
	// negative indexes count from the tail, Redis semantics).
	ListRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ListLen returns the length of the list at key, 0 if absent.
	ListLen(ctx context.Context, key string) (int64, error)

	// IncrByFloat adds delta to the numeric value at key, creating it
	// at zero if absent, and returns the new value.
	IncrByFloat(ctx context.Context, key string, delta float64) (float64, error)

	// Expire sets or refreshes the TTL on key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
