package cache

import (
	"fmt"
	"time"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Backend         string
	RedisURL        string
	Prefix          string
	CleanupInterval time.Duration // memory backend only
}

// NewStore builds the configured backend wrapped in a LoggingStore.
func NewStore(cfg Config) (*LoggingStore, error) {
	switch cfg.Backend {
	case BackendRedis, "":
		s, err := NewRedisStore(RedisConfig{URL: cfg.RedisURL, Prefix: cfg.Prefix})
		if err != nil {
			return nil, err
		}
		return NewLoggingStore(s, BackendRedis), nil
	case BackendMemory:
		return NewLoggingStore(NewMemoryStore(cfg.CleanupInterval), BackendMemory), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
