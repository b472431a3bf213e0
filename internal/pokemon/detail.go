package pokemon

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"pokeproxy/internal/cache"
	"pokeproxy/internal/pokeapi"
	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

type DetailInput struct {
	Name string
}

type Stat struct {
	Name     string `json:"name"`
	BaseStat int    `json:"baseStat"`
	Effort   int    `json:"effort"`
}

type Ability struct {
	Name     string `json:"name"`
	IsHidden bool   `json:"isHidden"`
	Slot     int    `json:"slot"`
}

// DetailResult is the flattened view of one entity. Abilities are sorted by
// name; stats and types keep upstream order.
type DetailResult struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Height         int       `json:"height"`
	Weight         int       `json:"weight"`
	BaseExperience int       `json:"baseExperience"`
	Image          *string   `json:"image"`
	Stats          []Stat    `json:"stats"`
	Types          []string  `json:"types"`
	Abilities      []Ability `json:"abilities"`
}

// DetailUseCase serves single-entity lookups through the cache.
type DetailUseCase struct {
	upstream Upstream
	aside    *cache.Aside
}

func NewDetailUseCase(upstream Upstream, aside *cache.Aside) *DetailUseCase {
	return &DetailUseCase{upstream: upstream, aside: aside}
}

// Execute validates and normalizes the name, then returns the entity from
// cache or upstream. Failures are *AppError values.
func (uc *DetailUseCase) Execute(ctx context.Context, in DetailInput) (DetailResult, error) {
	name, appErr := normalizeName(in.Name)
	if appErr != nil {
		return DetailResult{}, appErr
	}

	start := time.Now()
	ctx = logging.WithFields(ctx, zap.String("operation", "get_pokemon_by_name"))
	logger := logging.L(ctx)
	logger.Debug("GetPokemonByName started", zap.String("pokemon_name", name))

	fetch := func(ctx context.Context) (DetailResult, error) {
		d, err := uc.upstream.GetPokemonByName(ctx, name)
		if err != nil {
			return DetailResult{}, err
		}
		return toDetailResult(d), nil
	}

	data, err := throughCache(ctx, uc.aside, cache.DetailKey(name), fetch)
	if err != nil {
		if pokeapi.IsNotFound(err) {
			logger.Warn("GetPokemonByName not found",
				zap.String("pokemon_name", name),
				zap.Duration("duration", time.Since(start)),
			)
			return DetailResult{}, notFound(fmt.Sprintf("Pokemon with name %q not found", name), err)
		}
		logger.Error("GetPokemonByName failed",
			zap.String("pokemon_name", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return DetailResult{}, unexpected(err)
	}

	logger.Info("GetPokemonByName succeeded",
		zap.String("pokemon_name", name),
		zap.Int("pokemon_id", data.ID),
		zap.Duration("duration", time.Since(start)),
	)
	return data, nil
}

// normalizeName trims, validates and lowercases a requested name.
func normalizeName(raw string) (string, *AppError) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", validation("Pokemon name is required")
	}
	if !validName.MatchString(trimmed) {
		return "", validation("Pokemon name must contain only letters, numbers, and hyphens")
	}
	return strings.ToLower(trimmed), nil
}

func toDetailResult(d *pokeapi.Detail) DetailResult {
	out := DetailResult{
		ID:             d.ID,
		Name:           d.Name,
		Height:         d.Height,
		Weight:         d.Weight,
		BaseExperience: d.BaseExperience,
		Image:          pickImage(d.Sprites),
		Stats:          make([]Stat, 0, len(d.Stats)),
		Types:          make([]string, 0, len(d.Types)),
		Abilities:      make([]Ability, 0, len(d.Abilities)),
	}
	for _, s := range d.Stats {
		out.Stats = append(out.Stats, Stat{Name: s.Stat.Name, BaseStat: s.BaseStat, Effort: s.Effort})
	}
	for _, t := range d.Types {
		out.Types = append(out.Types, t.Type.Name)
	}
	for _, a := range d.Abilities {
		out.Abilities = append(out.Abilities, Ability{Name: a.Ability.Name, IsHidden: a.IsHidden, Slot: a.Slot})
	}
	sortAbilities(out.Abilities)
	return out
}

// pickImage prefers the official artwork over the default sprite.
func pickImage(s pokeapi.Sprites) *string {
	if s.Other != nil && s.Other.OfficialArtwork != nil && s.Other.OfficialArtwork.FrontDefault != nil {
		return s.Other.OfficialArtwork.FrontDefault
	}
	return s.FrontDefault
}

// Collators keep internal buffers and are not safe for concurrent use.
func sortAbilities(abilities []Ability) {
	c := collate.New(language.English)
	sort.SliceStable(abilities, func(i, j int) bool {
		return c.CompareString(abilities[i].Name, abilities[j].Name) < 0
	})
}
