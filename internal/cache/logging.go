package cache

import (
	"context"
	"time"

	"pokeproxy/internal/metrics"
	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
)

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner   Store
	backend string
}

// NewLoggingStore returns a store that logs every operation and records
// hit, miss and error counters. backend labels the log entries.
func NewLoggingStore(inner Store, backend string) *LoggingStore {
	return &LoggingStore{inner: inner, backend: backend}
}

func (s *LoggingStore) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	value, ok, err := s.inner.Get(ctx, key)

	result := "miss"
	switch {
	case err != nil:
		result = "error"
		metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
	case ok:
		result = "hit"
		metrics.CacheHitsTotal.Inc()
	default:
		metrics.CacheMissesTotal.Inc()
	}

	fields := s.fields(key, start)
	fields = append(fields, zap.String("cache_result", result)) // hit | miss | error
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logging.L(ctx).Debug("cache_get", fields...)

	return value, ok, err
}

func (s *LoggingStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)

	fields := append(s.fields(key, start), zap.Duration("ttl", ttl))
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		logging.L(ctx).Debug("cache_set", append(fields, zap.Error(err))...)
	} else {
		logging.L(ctx).Debug("cache_set", fields...)
	}

	return err
}

func (s *LoggingStore) Del(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	n, err := s.inner.Del(ctx, key)

	fields := append(s.fields(key, start), zap.Int64("deleted", n))
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("del").Inc()
		logging.L(ctx).Warn("cache_del", append(fields, zap.Error(err))...)
	} else {
		logging.L(ctx).Debug("cache_del", fields...)
	}

	return n, err
}

// Ping delegates to the wrapped store when it supports it.
func (s *LoggingStore) Ping(ctx context.Context) error {
	if p, ok := s.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *LoggingStore) Close() error {
	return s.inner.Close()
}

func (s *LoggingStore) fields(key string, start time.Time) []zap.Field {
	return []zap.Field{
		zap.String("cache_backend", s.backend),
		zap.String("cache_key", key),
		zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0),
	}
}
