package cache

import (
	"context"
	"sync"
	"time"

	"pokeproxy/internal/metrics"
	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
)

const (
	defaultWriteWorkers = 4
	defaultWriteQueue   = 256
	defaultWriteTimeout = 5 * time.Second
)

type WriterConfig struct {
	Workers      int           // default: 4
	QueueSize    int           // default: 256
	WriteTimeout time.Duration // per-write bound (default: 5s)
}

type writeJob struct {
	ctx   context.Context
	key   string
	value string
	ttl   time.Duration
}

// Writer persists cache entries in the background with a fixed number of
// workers and a bounded queue. Callers never block: when the queue is full
// the write is dropped.
type Writer struct {
	store   Store
	timeout time.Duration
	jobs    chan writeJob
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWriter starts the worker pool.
func NewWriter(store Store, cfg WriterConfig) *Writer {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWriteWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultWriteQueue
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	w := &Writer{
		store:   store,
		timeout: cfg.WriteTimeout,
		jobs:    make(chan writeJob, cfg.QueueSize),
	}
	w.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go w.run()
	}
	return w
}

// Enqueue schedules a write and reports whether it was accepted. The write
// outlives ctx's cancellation but keeps its values (request-scoped logger).
func (w *Writer) Enqueue(ctx context.Context, key, value string, ttl time.Duration) bool {
	job := writeJob{ctx: context.WithoutCancel(ctx), key: key, value: value, ttl: ttl}

	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.drop(job, "writer closed")
		return false
	}

	select {
	case w.jobs <- job:
		return true
	default:
		w.drop(job, "queue full")
		return false
	}
}

func (w *Writer) drop(job writeJob, reason string) {
	metrics.CacheWritesDroppedTotal.Inc()
	logging.L(job.ctx).Warn("[Cache] Dropped write",
		zap.String("cache_key", job.key),
		zap.String("reason", reason),
	)
}

func (w *Writer) run() {
	defer w.wg.Done()
	for job := range w.jobs {
		w.write(job)
	}
}

func (w *Writer) write(job writeJob) {
	ctx, cancel := context.WithTimeout(job.ctx, w.timeout)
	defer cancel()

	if err := w.store.Set(ctx, job.key, job.value, job.ttl); err != nil {
		logging.L(job.ctx).Warn("[Cache] Failed to save cache",
			zap.String("cache_key", job.key),
			zap.Error(err),
		)
		return
	}
	logging.L(job.ctx).Debug("[Cache SAVED]",
		zap.String("cache_key", job.key),
		zap.Duration("ttl", job.ttl),
	)
}

// Close stops intake and waits for queued writes to finish, or for ctx to
// expire. Safe to call more than once.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
