package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pokeproxy/internal/handlers"
	"pokeproxy/internal/httpserver"
	"pokeproxy/internal/metrics"
	"pokeproxy/internal/warmup"
	"pokeproxy/pkg/logging/logging"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP proxy (default).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}
	addServeFlags(cmd.Flags())
	return cmd
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.Int("port", 0, "listen port")
}

func runServe(ctx context.Context, v *viper.Viper) error {
	cfg, logger, err := setup(v)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	metrics.Register()

	logger.Info("loaded config",
		zap.Int("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("pokeapi_base_url", cfg.PokeAPIBaseURL),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Bool("warmup_famous", cfg.WarmupFamous),
		zap.Int("warmup_pages", cfg.WarmupPages),
	)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Options{
		RequestTimeout: cfg.RequestTimeout,
		ThrottleLimit:  cfg.ThrottleLimit,
		ThrottleWindow: time.Minute,
		SecureCookies:  cfg.Env == "production",
	}, handlers.NewPokemonHandler(a.list, a.detail), a.store)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		_ = a.close(context.Background())
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting pokeproxy", zap.String("addr", srv.Addr))

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// jobs run on ctx so shutdown stops them between items
	boot := warmup.NewBootstrap(warmup.BootstrapConfig{
		Env:           cfg.Env,
		Pages:         cfg.WarmupPages,
		Famous:        cfg.WarmupFamous,
		LLMKeyPresent: cfg.LLMKey() != "",
	}, warmup.NewListPagesJob(a.list), a.famousJob())
	boot.Start(logging.WithLogger(ctx, logger))

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serveErr:
		logger.Error("server error", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}
	stop()
	boot.Wait()
	if err := a.close(shutdownCtx); err != nil {
		logger.Error("cleanup error", zap.Error(err))
		runErr = errors.Join(runErr, err)
	}

	logger.Info("server shutdown complete")
	return runErr
}
