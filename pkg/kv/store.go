package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// Store is the subset of Redis semantics polyscreen relies on: opaque
// values with optional expiry, and counters.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl ...time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)

	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL returns -1 for a key without expiry and ErrNotFound for a missing key.
	TTL(ctx context.Context, key string) (time.Duration, error)

	IncrBy(ctx context.Context, key string, n int64) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
