package warmup

import (
	"context"
	"fmt"

	"pokeproxy/internal/llm"
	"pokeproxy/internal/metrics"
	"pokeproxy/internal/pokemon"
	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FamousPrompt asks the model for the names to warm.
const FamousPrompt = "Return ONLY a valid JSON array of exactly 10 Pokémon names. " +
	`All lowercase. No extra text. Example: ["pikachu","charizard",...]`

const outputPreviewLen = 300

type Failure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type FamousOutcome struct {
	Names           []string  `json:"names"`
	Warmed          []string  `json:"warmed"`
	Failed          []Failure `json:"failed"`
	ListCacheWarmed bool      `json:"listCacheWarmed"`
}

// FamousJob asks a text generator for well-known names and warms their
// detail entries plus the default listing page.
type FamousJob struct {
	gen    llm.TextGenerator
	list   Lister
	detail Detailer
}

func NewFamousJob(gen llm.TextGenerator, list Lister, detail Detailer) *FamousJob {
	return &FamousJob{gen: gen, list: list, detail: detail}
}

// Execute fails only when no names can be obtained. Individual lookups that
// fail are reported in the outcome.
func (j *FamousJob) Execute(ctx context.Context) (FamousOutcome, error) {
	logger := logging.L(ctx).With(zap.String("job", "famous"))
	logger.Info("WarmupFamousPokemons started")

	raw, err := j.gen.GenerateText(ctx, FamousPrompt)
	if err != nil {
		return FamousOutcome{}, fmt.Errorf("generate names: %w", err)
	}

	names, err := ParseNames(raw)
	if err != nil {
		logger.Warn("WarmupFamousPokemons could not parse model output",
			zap.String("output_preview", preview(raw)),
			zap.Error(err),
		)
		return FamousOutcome{}, err
	}

	out := FamousOutcome{
		Names:  names,
		Warmed: []string{},
		Failed: []Failure{},
	}

	listErr := guard(func() error {
		_, err := j.list.Execute(ctx, pokemon.ListInput{})
		return err
	})
	out.ListCacheWarmed = listErr == nil
	if listErr != nil {
		logger.Warn("WarmupFamousPokemons list cache warm-up failed", zap.Error(listErr))
	}

	// every task returns nil so one failure never cancels the others
	results := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = guard(func() error {
				_, err := j.detail.Execute(ctx, pokemon.DetailInput{Name: name})
				return err
			})
			return nil
		})
	}
	_ = g.Wait()

	for i, name := range names {
		if results[i] == nil {
			out.Warmed = append(out.Warmed, name)
			metrics.WarmupItemsTotal.WithLabelValues("famous", "warmed").Inc()
			continue
		}
		out.Failed = append(out.Failed, Failure{Name: name, Reason: reason(results[i])})
		metrics.WarmupItemsTotal.WithLabelValues("famous", "failed").Inc()
	}

	logger.Info("WarmupFamousPokemons finished",
		zap.Strings("names", names),
		zap.Int("warmed_count", len(out.Warmed)),
		zap.Int("failed_count", len(out.Failed)),
		zap.Bool("list_cache_warmed", out.ListCacheWarmed),
	)
	return out, nil
}

func reason(err error) string {
	if appErr := pokemon.AsAppError(err); appErr != nil {
		return appErr.Message
	}
	return err.Error()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= outputPreviewLen {
		return s
	}
	return string(r[:outputPreviewLen])
}
