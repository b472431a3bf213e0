// Package retry wraps outbound HTTP calls with bounded retries.
//
// Only transient network errors, 408, 429 and 5xx responses are retried.
// Retry-After is honored when present, otherwise the delay is exponential
// backoff with full jitter. The caller's context bounds the whole loop.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseBackoff = 100 * time.Millisecond
	maxExponent        = 10
	maxBackoff         = 60 * time.Second
	maxRetryAfter      = 5 * time.Minute
)

// Policy bounds a retry loop.
type Policy struct {
	MaxRetries  int           // retries after the first attempt
	BaseBackoff time.Duration // initial backoff (default: 100ms)
}

// StatusError reports that the last attempt ended with a retryable status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d", e.StatusCode)
}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retries (%d) exceeded: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do performs do until it yields a non-retryable result or the policy is
// exhausted. A response with a non-retryable status is returned as is; the
// caller owns its body.
func Do(
	ctx context.Context,
	logger *zap.Logger,
	policy Policy,
	do func(ctx context.Context) (*http.Response, error),
) (*http.Response, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	maxAttempts := policy.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := do(ctx)
		duration := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		logger.Debug("upstream attempt",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.Error(err),
		)

		if err != nil {
			// context errors are final
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			if !IsTransientNetError(err) {
				return nil, err
			}
			lastErr = err
		} else if !ShouldRetryStatus(status) {
			return resp, nil
		} else {
			lastErr = &StatusError{StatusCode: status}

			retryAfter := ParseRetryAfter(resp)

			// close before retrying so the connection can be reused
			if resp.Body != nil {
				_ = resp.Body.Close()
			}

			if retryAfter > 0 && attempt < maxAttempts-1 {
				logger.Info("honoring Retry-After header",
					zap.Duration("wait", retryAfter),
					zap.Int("status", status),
				)
				if err := sleep(ctx, retryAfter); err != nil {
					return nil, err
				}
				continue
			}
		}

		if attempt == maxAttempts-1 {
			break
		}

		backoff := ComputeBackoff(policy.BaseBackoff, attempt)
		logger.Debug("backing off before retry",
			zap.Duration("backoff", backoff),
			zap.Int("next_attempt", attempt+2),
		)
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}

	logger.Warn("upstream request exhausted all retries",
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)

	if lastErr == nil {
		lastErr = errors.New("unknown upstream error")
	}
	return nil, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsTransientNetError reports whether a transport error is worth retrying.
func IsTransientNetError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write" {
			return true
		}
	}

	// wrapped errors sometimes only survive as text
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"temporary failure",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// ShouldRetryStatus reports whether an HTTP status is transient.
func ShouldRetryStatus(status int) bool {
	switch {
	case status == 0:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status == http.StatusRequestTimeout:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}

// ParseRetryAfter reads a Retry-After header given either as seconds or as
// an HTTP date. Returns 0 when absent or invalid. Capped at five minutes.
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		if seconds <= 0 {
			return 0
		}
		d := time.Duration(seconds) * time.Second
		if d > maxRetryAfter {
			d = maxRetryAfter
		}
		return d
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		d := time.Until(t)
		if d <= 0 {
			return 0
		}
		if d > maxRetryAfter {
			d = maxRetryAfter
		}
		return d
	}

	return 0
}

// ComputeBackoff returns a random delay in [0, base*2^attempt), capped at
// one minute.
func ComputeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = defaultBaseBackoff
	}
	if attempt > maxExponent {
		attempt = maxExponent
	}

	ceiling := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if ceiling > maxBackoff {
		ceiling = maxBackoff
	}

	return time.Duration(rand.Float64() * float64(ceiling))
}
