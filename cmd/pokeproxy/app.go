package main

import (
	"context"
	"errors"
	"time"

	"pokeproxy/internal/cache"
	"pokeproxy/internal/config"
	"pokeproxy/internal/llm"
	"pokeproxy/internal/pokeapi"
	"pokeproxy/internal/pokemon"
	"pokeproxy/internal/warmup"

	"go.uber.org/zap"
)

// app holds the components shared by serve and warmup.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	store    *cache.LoggingStore
	writer   *cache.Writer
	upstream *pokeapi.Client
	gen      llm.TextGenerator // nil without an API key

	list   *pokemon.ListUseCase
	detail *pokemon.DetailUseCase
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	store, err := cache.NewStore(cache.Config{
		Backend:         cfg.CacheBackend,
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CacheKeyPrefix,
		CleanupInterval: time.Minute,
	})
	if err != nil {
		return nil, err
	}

	upstream, err := pokeapi.NewClient(pokeapi.Config{
		BaseURL: cfg.PokeAPIBaseURL,
		Timeout: cfg.PokeAPITimeout,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var gen llm.TextGenerator
	if key := cfg.LLMKey(); key != "" {
		gen, err = llm.New(cfg.LLMProvider, llmConfig(cfg, key), logger)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	writer := cache.NewWriter(store, cache.WriterConfig{
		Workers:   cfg.CacheWriteWorkers,
		QueueSize: cfg.CacheWriteQueue,
	})
	aside := cache.NewAside(store, writer)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		writer:   writer,
		upstream: upstream,
		gen:      gen,
		list:     pokemon.NewListUseCase(upstream, aside),
		detail:   pokemon.NewDetailUseCase(upstream, aside),
	}, nil
}

func llmConfig(cfg config.Config, key string) llm.Config {
	if cfg.LLMProvider == config.ProviderOpenAI {
		return llm.Config{BaseURL: cfg.LLMBaseURL, APIKey: key, Model: cfg.LLMModel}
	}
	return llm.Config{BaseURL: cfg.GeminiBaseURL, APIKey: key, Model: cfg.GeminiModel}
}

func (a *app) famousJob() *warmup.FamousJob {
	if a.gen == nil {
		return nil
	}
	return warmup.NewFamousJob(a.gen, a.list, a.detail)
}

// close drains pending cache writes and releases connections.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.writer.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if c, ok := a.gen.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.upstream.CloseIdleConnections()
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
