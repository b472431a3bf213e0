// Package pokeapi is a small client for the PokeAPI REST endpoints the proxy
// reads from.
package pokeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pokeproxy/internal/metrics"
	"pokeproxy/internal/retry"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	opList   = "list"
	opDetail = "detail"

	maxErrorBody = 200
)

type Config struct {
	BaseURL string // default: https://pokeapi.co/api/v2

	Timeout     time.Duration // per-request timeout (default: 10s)
	MaxRetries  int           // retry attempts on transient failures (default: 1)
	BaseBackoff time.Duration // initial backoff (default: 100ms)

	// Breaker trips after BreakerFailures consecutive failures and stays
	// open for BreakerTimeout.
	BreakerFailures int           // default: 5
	BreakerTimeout  time.Duration // default: 30s

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// WithDefaults returns a copy of Config with defaults applied.
func (c Config) WithDefaults() Config {
	cfg := c
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://pokeapi.co/api/v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	return cfg
}

// Client fetches listing pages and details from PokeAPI.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient builds a client. A negative MaxRetries disables retries.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()

	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("pokeapi")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: defaultTransport()}
	}

	failures := uint32(cfg.BreakerFailures)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pokeapi",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// a 404 or a caller giving up says nothing about upstream health
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}, nil
}

func defaultTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// ListPokemons fetches one page of the catalog.
func (c *Client) ListPokemons(ctx context.Context, limit, offset int) (*ListResponse, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var out ListResponse
	if err := c.get(ctx, opList, "/pokemon", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPokemonByName fetches one entity. The name is lowercased and trimmed.
// An unknown name yields an error matching ErrNotFound.
func (c *Client) GetPokemonByName(ctx context.Context, name string) (*Detail, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))

	var out Detail
	if err := c.get(ctx, opDetail, "/pokemon/"+url.PathEscape(normalized), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	start := time.Now()

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, op, path, query, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &UpstreamError{Op: op, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
	}

	metrics.UpstreamRequestsTotal.WithLabelValues(op, statusLabel(err)).Inc()
	metrics.UpstreamLatencySeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil && !IsNotFound(err) {
		c.logger.Warn("upstream request failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}
	return err
}

func (c *Client) do(parentCtx context.Context, op, path string, query url.Values, out any) error {
	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	doOnce := func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return c.httpClient.Do(req)
	}

	resp, err := retry.Do(ctx, c.logger, retry.Policy{
		MaxRetries:  c.cfg.MaxRetries,
		BaseBackoff: c.cfg.BaseBackoff,
	}, doOnce)
	if err != nil {
		ue := &UpstreamError{Op: op, Err: err}
		var se *retry.StatusError
		if errors.As(err, &se) {
			ue.StatusCode = se.StatusCode
		}
		return ue
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &UpstreamError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     truncate(strings.TrimSpace(string(body)), maxErrorBody),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrCircuitOpen) {
		return "circuit_open"
	}
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.StatusCode != 0 {
		return strconv.Itoa(ue.StatusCode)
	}
	return "error"
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
