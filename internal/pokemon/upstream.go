package pokemon

import (
	"context"
	"fmt"
	"time"

	"pokeproxy/internal/cache"
	"pokeproxy/internal/pokeapi"
	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
)

// CacheTTL is how long use-case results stay cached.
const CacheTTL = 60 * time.Second

// Upstream is the catalog the use cases read through.
type Upstream interface {
	ListPokemons(ctx context.Context, limit, offset int) (*pokeapi.ListResponse, error)
	GetPokemonByName(ctx context.Context, name string) (*pokeapi.Detail, error)
}

// throughCache runs fetch behind the cache-aside orchestrator. If the cache
// path itself panics, fetch is called directly so a broken cache can never
// fail a request on its own.
func throughCache[T any](
	ctx context.Context,
	aside *cache.Aside,
	key string,
	fetch func(ctx context.Context) (T, error),
) (T, error) {
	data, err, bypass := tryCache(ctx, aside, key, fetch)
	if bypass == nil {
		return data, err
	}

	logging.L(ctx).Warn("[Cache] Bypassing cache due to error",
		zap.String("cache_key", key),
		zap.Error(bypass),
	)
	return fetch(ctx)
}

func tryCache[T any](
	ctx context.Context,
	aside *cache.Aside,
	key string,
	fetch func(ctx context.Context) (T, error),
) (data T, err error, bypass error) {
	inFetch := false
	defer func() {
		if r := recover(); r != nil {
			// panics raised by fetch are not a cache problem
			if inFetch {
				panic(r)
			}
			bypass = fmt.Errorf("cache panic: %v", r)
		}
	}()
	data, err = cache.WithCache(ctx, aside, key, CacheTTL, func(ctx context.Context) (T, error) {
		inFetch = true
		v, err := fetch(ctx)
		inFetch = false
		return v, err
	})
	return data, err, nil
}
