package warmup

import (
	"context"
	"sync"

	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
)

// BootstrapConfig holds the startup toggles.
type BootstrapConfig struct {
	Env           string // "test" disables every job
	Pages         int    // list-pages job runs when > 0
	Famous        bool
	LLMKeyPresent bool
}

// Bootstrap runs the warm-up jobs in the background after startup.
type Bootstrap struct {
	cfg    BootstrapConfig
	pages  *ListPagesJob
	famous *FamousJob
	wg     sync.WaitGroup
}

// NewBootstrap wires the jobs. famous may be nil when no text generator is
// configured.
func NewBootstrap(cfg BootstrapConfig, pages *ListPagesJob, famous *FamousJob) *Bootstrap {
	return &Bootstrap{cfg: cfg, pages: pages, famous: famous}
}

// Start launches the enabled jobs and returns immediately. Job failures are
// logged and never propagated.
func (b *Bootstrap) Start(ctx context.Context) {
	logger := logging.L(ctx).Named("warmup")

	if b.cfg.Env == "test" {
		return
	}

	if b.cfg.Pages > 0 && b.pages != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			err := guard(func() error {
				b.pages.Execute(ctx, b.cfg.Pages)
				return nil
			})
			if err != nil {
				logger.Error("WarmupPokemonListPages failed (non-fatal)", zap.Error(err))
			}
		}()
	}

	if !b.cfg.Famous {
		return
	}
	if !b.cfg.LLMKeyPresent || b.famous == nil {
		logger.Warn("WarmupFamousPokemons skipped: LLM API key is not configured")
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		err := guard(func() error {
			_, err := b.famous.Execute(ctx)
			return err
		})
		if err != nil {
			logger.Error("WarmupFamousPokemons failed (non-fatal)", zap.Error(err))
		}
	}()
}

// Wait blocks until every started job has returned.
func (b *Bootstrap) Wait() {
	b.wg.Wait()
}
