package handlers

import (
	"context"
	"net/http"
	"time"

	"pokeproxy/internal/cache"
	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
)

// Health handles GET /healthz.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready handles GET /readyz by pinging the cache store when it supports it.
// A store without Ping is always ready.
func Ready(store cache.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := store.(cache.Pinger)
		if !ok {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			logging.L(r.Context()).Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "cache": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
