package cache

import (
	"context"
	"encoding/json"
	"time"

	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
)

// DefaultTTL applies when WithCache is given a non-positive TTL.
const DefaultTTL = time.Hour

// Aside pairs the store used for reads with the writer used to populate it.
type Aside struct {
	store  Store
	writer *Writer
}

// NewAside returns an orchestrator reading from store and writing through
// writer. writer should wrap the same store.
func NewAside(store Store, writer *Writer) *Aside {
	return &Aside{store: store, writer: writer}
}

// WithCache returns the cached value for key when present. Otherwise it calls
// fetch, schedules the JSON-encoded result to be stored with ttl, and returns
// it without waiting for the write.
//
// Store failures never reach the caller: a failed or undecodable read is a
// miss and a failed write is only logged. Errors from fetch are returned
// unchanged and nothing is cached.
func WithCache[T any](
	ctx context.Context,
	a *Aside,
	key string,
	ttl time.Duration,
	fetch func(ctx context.Context) (T, error),
) (T, error) {
	logger := logging.L(ctx)

	raw, ok, err := a.store.Get(ctx, key)
	switch {
	case err != nil:
		logger.Warn("[Cache] Failed to read cache",
			zap.String("cache_key", key),
			zap.Error(err),
		)
	case ok && raw != "":
		var cached T
		decodeErr := json.Unmarshal([]byte(raw), &cached)
		if decodeErr == nil {
			logger.Debug("[Cache HIT]", zap.String("cache_key", key))
			return cached, nil
		}
		logger.Warn("[Cache] Ignoring undecodable entry",
			zap.String("cache_key", key),
			zap.Error(decodeErr),
		)
	default:
		logger.Debug("[Cache MISS]", zap.String("cache_key", key))
	}

	data, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		logger.Warn("[Cache] Failed to encode value",
			zap.String("cache_key", key),
			zap.Error(err),
		)
		return data, nil
	}

	a.writer.Enqueue(ctx, key, string(encoded), ttl)
	return data, nil
}
