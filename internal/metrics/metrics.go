package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: cache reads served from the store.
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pokeproxy_cache_hits_total",
			Help: "Total number of cache hits.",
		},
	)

	// Counter: cache reads that fell through to the upstream.
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pokeproxy_cache_misses_total",
			Help: "Total number of cache misses.",
		},
	)

	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokeproxy_cache_errors_total",
			Help: "Cache store failures by operation.",
		},
		[]string{"op"},
	)

	// Counter: background writes dropped because the write queue was full
	// or already closed.
	CacheWritesDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pokeproxy_cache_writes_dropped_total",
			Help: "Total number of cache writes dropped before reaching the store.",
		},
	)

	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokeproxy_upstream_requests_total",
			Help: "Upstream API requests by endpoint and outcome.",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pokeproxy_upstream_latency_seconds",
			Help:    "Upstream API latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	WarmupItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pokeproxy_warmup_items_total",
			Help: "Warm-up items by job and result.",
		},
		[]string{"job", "result"},
	)

	// Histogram: HTTP latency in seconds.
	HTTPLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pokeproxy_http_latency_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			CacheHitsTotal,
			CacheMissesTotal,
			CacheErrorsTotal,
			CacheWritesDroppedTotal,
			UpstreamRequestsTotal,
			UpstreamLatencySeconds,
			WarmupItemsTotal,
			HTTPLatencySeconds,
		)
	})
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures latency for each HTTP request. The path label uses the
// chi route pattern when available so /pokemon/{name} stays one series.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture status code
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		method := r.Method
		status := strconv.Itoa(rec.statusCode)

		HTTPLatencySeconds.
			WithLabelValues(path, method, status).
			Observe(duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
