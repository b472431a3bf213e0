// Package warmup populates the cache ahead of traffic.
package warmup

import (
	"context"
	"fmt"

	"pokeproxy/internal/pokemon"
)

// Lister is the listing use case.
type Lister interface {
	Execute(ctx context.Context, in pokemon.ListInput) (pokemon.ListResult, error)
}

// Detailer is the detail use case.
type Detailer interface {
	Execute(ctx context.Context, in pokemon.DetailInput) (pokemon.DetailResult, error)
}

// guard runs fn and turns a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func pokemonListInput(limit, offset int) pokemon.ListInput {
	return pokemon.ListInput{Limit: &limit, Offset: &offset}
}
