package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	RateLimitHeader     = "X-RateLimit-Limit"
	RateRemainingHeader = "X-RateLimit-Remaining"
	RateResetHeader     = "X-RateLimit-Reset"
	RateTotalHeader     = "X-RateLimit-Total"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter throttles each client to limit requests per window using a
// token bucket per key. Keys are correlation id plus client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	every    rate.Limit
	limiters map[string]*limiterEntry

	lastCleanup time.Time
	now         func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:       limit,
		window:      window,
		every:       rate.Every(window / time.Duration(limit)),
		limiters:    make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow takes one token for key. It reports whether the request may proceed,
// the tokens left and how long until the bucket is full again.
func (rl *RateLimiter) Allow(key string) (ok bool, remaining int, reset time.Duration) {
	now := rl.now()
	lim := rl.limiterFor(key, now)

	ok = lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)
	remaining = max(int(math.Floor(tokens)), 0)
	missing := float64(rl.limit) - tokens
	if missing > 0 {
		reset = time.Duration(missing / float64(rl.every) * float64(time.Second))
	}
	return ok, remaining, reset
}

func (rl *RateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastCleanup) > rl.window {
		rl.cleanup(now)
	}

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.every, rl.limit)}
		rl.limiters[key] = e
	}
	e.lastUsed = now
	return e.limiter
}

// cleanup drops buckets idle for a full window; they would be full anyway.
func (rl *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-rl.window)
	for k, e := range rl.limiters {
		if e.lastUsed.Before(cutoff) {
			delete(rl.limiters, k)
		}
	}
	rl.lastCleanup = now
}

// Middleware sets the X-RateLimit-* headers and answers 429 once a client is
// over its budget. X-RateLimit-Reset is the Unix time in seconds at which the
// bucket is full again.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := CorrelationID(r.Context()) + ":" + clientIP(r)
		ok, remaining, reset := rl.Allow(key)

		// tokens spent, plus this request when it is rejected
		total := rl.limit - remaining
		if !ok {
			total++
		}
		resetAt := int64(math.Ceil(float64(rl.now().UnixMilli())/1000)) + int64(math.Ceil(reset.Seconds()))

		h := w.Header()
		h.Set(RateLimitHeader, strconv.Itoa(rl.limit))
		h.Set(RateRemainingHeader, strconv.Itoa(remaining))
		h.Set(RateResetHeader, strconv.FormatInt(resetAt, 10))
		h.Set(RateTotalHeader, strconv.Itoa(total))

		if !ok {
			logging.L(r.Context()).Warn("request throttled", zap.String("client_key", key))
			writeError(w, http.StatusTooManyRequests, "too_many_requests", "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr, which chi's RealIP may already
// have rewritten.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
