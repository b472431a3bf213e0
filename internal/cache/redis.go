package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const defaultConnectTimeout = 5 * time.Second

// RedisStore implements Store using Redis.
//
// The connection is established lazily on first use. Concurrent first users
// share a single PING handshake; a failed handshake is forgotten so the next
// call tries again.
type RedisStore struct {
	opts           *redis.Options
	prefix         string
	connectTimeout time.Duration

	connect singleflight.Group

	mu     sync.RWMutex
	client *redis.Client
	closed bool
}

type RedisConfig struct {
	URL            string        // redis://[user:pass@]host:port/db
	Prefix         string        // optional, joined with ":"; empty keeps keys bit-exact
	ConnectTimeout time.Duration // PING handshake bound (default: 5s)
}

// NewRedisStore parses the connection URL. No connection is made until the
// first operation.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	return &RedisStore{
		opts:           opts,
		prefix:         cfg.Prefix,
		connectTimeout: timeout,
	}, nil
}

// key builds the final Redis key with prefix.
func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// conn returns a connected client, performing the handshake if needed.
func (s *RedisStore) conn(ctx context.Context) (*redis.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	client, closed := s.client, s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if client != nil {
		return client, nil
	}

	ch := s.connect.DoChan("connect", func() (any, error) {
		s.mu.RLock()
		existing := s.client
		s.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		// shared by every waiter, so it must not die with the first caller
		pingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.connectTimeout)
		defer cancel()

		c := redis.NewClient(s.opts)
		if err := c.Ping(pingCtx).Err(); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			_ = c.Close()
			return nil, ErrClosed
		}
		s.client = c
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context error: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*redis.Client), nil
	}
}

// Get retrieves a value. A missing key is a clean miss, not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return "", false, err
	}

	res, err := c.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get failed: %w", err)
	}
	return res, true, nil
}

// Set stores value. The TTL is truncated to whole seconds; anything under
// one second persists without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}

	expiration := ttl.Truncate(time.Second)
	if expiration < time.Second {
		expiration = 0
	}

	if err := c.Set(ctx, s.key(key), value, expiration).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Del removes a key and reports how many keys were deleted.
func (s *RedisStore) Del(ctx context.Context, key string) (int64, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	n, err := c.Del(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del failed: %w", err)
	}
	return n, nil
}

// Ping checks that Redis is reachable, connecting if necessary.
func (s *RedisStore) Ping(ctx context.Context) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return c.Ping(ctx).Err()
}

// Connected reports whether the handshake has completed.
func (s *RedisStore) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

// Close releases the connection. Later operations return ErrClosed.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}
