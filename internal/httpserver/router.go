package httpserver

import (
	"time"

	"pokeproxy/internal/cache"
	"pokeproxy/internal/handlers"
	"pokeproxy/internal/metrics"
	"pokeproxy/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Options configures the middleware stack.
type Options struct {
	RequestTimeout time.Duration
	ThrottleLimit  int
	ThrottleWindow time.Duration
	SecureCookies  bool // production only
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, opts Options, pokemonHandler *handlers.PokemonHandler, store cache.Store) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.ThrottleWindow <= 0 {
		opts.ThrottleWindow = time.Minute
	}

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Correlation(opts.SecureCookies))
	r.Use(middleware.Recoverer())

	// health checks and scraping are neither throttled nor timed out
	r.Get("/healthz", handlers.Health)
	r.Get("/readyz", handlers.Ready(store))
	r.Handle("/metrics", metrics.Handler())

	limiter := middleware.NewRateLimiter(opts.ThrottleLimit, opts.ThrottleWindow)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Route("/pokemon", func(r chi.Router) {
			r.Get("/", pokemonHandler.List)
			r.Get("/{name}", pokemonHandler.Detail)
		})
	})
}
