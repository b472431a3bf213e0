package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("cache: store closed")

// Store is a string key-value store with per-entry TTL.
// Implemented by the Redis store (prod) and the memory store (dev/tests).
//
// Get reports a clean miss as ("", false, nil). Set with ttl <= 0 persists
// without expiry. Del returns the number of keys removed.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) (int64, error)
	Close() error
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
