package pokemon

import (
	"context"
	"fmt"

	"pokeproxy/internal/cache"
	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
)

const (
	MinLimit      = 10
	MaxLimit      = 20
	DefaultLimit  = 20
	DefaultOffset = 0
)

// ListInput selects a page. Nil fields take their defaults.
type ListInput struct {
	Limit  *int
	Offset *int
}

// ListResult is one page of names in upstream order.
type ListResult struct {
	Pokemons    []string `json:"pokemons"`
	Total       int      `json:"total"`
	HasNext     bool     `json:"hasNext"`
	HasPrevious bool     `json:"hasPrevious"`
}

// ListUseCase serves paginated listings through the cache.
type ListUseCase struct {
	upstream Upstream
	aside    *cache.Aside
}

func NewListUseCase(upstream Upstream, aside *cache.Aside) *ListUseCase {
	return &ListUseCase{upstream: upstream, aside: aside}
}

// Execute validates the page, then returns it from cache or upstream.
// Failures are *AppError values.
func (uc *ListUseCase) Execute(ctx context.Context, in ListInput) (ListResult, error) {
	limit, offset, appErr := validateList(in)
	if appErr != nil {
		return ListResult{}, appErr
	}

	ctx = logging.WithFields(ctx, zap.String("operation", "list_pokemons"))
	logger := logging.L(ctx)
	logger.Debug("ListPokemons started", zap.Int("limit", limit), zap.Int("offset", offset))

	fetch := func(ctx context.Context) (ListResult, error) {
		page, err := uc.upstream.ListPokemons(ctx, limit, offset)
		if err != nil {
			return ListResult{}, err
		}
		names := make([]string, 0, len(page.Results))
		for _, r := range page.Results {
			names = append(names, r.Name)
		}
		return ListResult{
			Pokemons:    names,
			Total:       page.Count,
			HasNext:     page.Next != nil,
			HasPrevious: page.Previous != nil,
		}, nil
	}

	data, err := throughCache(ctx, uc.aside, cache.ListKey(limit, offset), fetch)
	if err != nil {
		logger.Error("ListPokemons failed",
			zap.Int("limit", limit),
			zap.Int("offset", offset),
			zap.Error(err),
		)
		return ListResult{}, unexpected(err)
	}
	return data, nil
}

func validateList(in ListInput) (limit, offset int, appErr *AppError) {
	limit, offset = DefaultLimit, DefaultOffset
	if in.Limit != nil {
		limit = *in.Limit
	}
	if in.Offset != nil {
		offset = *in.Offset
	}

	if limit < MinLimit || limit > MaxLimit {
		return 0, 0, validation(fmt.Sprintf("Limit must be between %d and %d", MinLimit, MaxLimit))
	}
	if offset < 0 {
		return 0, 0, validation("Offset must be non-negative")
	}
	return limit, offset, nil
}
