package warmup

import (
	"context"

	"pokeproxy/internal/metrics"
	"pokeproxy/pkg/logging/logging"

	"go.uber.org/zap"
)

// PageLimit is the page size used when warming listing pages.
const PageLimit = 20

type PageDetail struct {
	Page    int  `json:"page"`
	Offset  int  `json:"offset"`
	Success bool `json:"success"`
}

// ListPagesOutcome reports one run. Pages skipped after cancellation appear
// in Details with Success false.
type ListPagesOutcome struct {
	PagesRequested int          `json:"pagesRequested"`
	PagesWarmed    int          `json:"pagesWarmed"`
	PagesFailed    int          `json:"pagesFailed"`
	Details        []PageDetail `json:"details"`
}

// ListPagesJob warms consecutive listing pages starting at offset 0.
type ListPagesJob struct {
	list Lister
}

func NewListPagesJob(list Lister) *ListPagesJob {
	return &ListPagesJob{list: list}
}

// Execute warms pages 0..count-1 sequentially. A failed page is recorded and
// the job moves on; nothing is returned as an error. Once ctx is done the
// remaining pages are not requested and count as failed, so PagesWarmed plus
// PagesFailed always equals PagesRequested.
func (j *ListPagesJob) Execute(ctx context.Context, count int) ListPagesOutcome {
	out := ListPagesOutcome{Details: []PageDetail{}}
	if count <= 0 {
		return out
	}

	logger := logging.L(ctx).With(zap.String("job", "list_pages"))
	logger.Info("WarmupPokemonListPages started", zap.Int("count_pages", count))

	out.PagesRequested = count
	for page := 0; page < count; page++ {
		offset := page * PageLimit
		limit := PageLimit

		if ctx.Err() != nil {
			out.Details = append(out.Details, PageDetail{Page: page, Offset: offset, Success: false})
			out.PagesFailed++
			metrics.WarmupItemsTotal.WithLabelValues("list_pages", "skipped").Inc()
			continue
		}

		err := guard(func() error {
			_, err := j.list.Execute(ctx, pokemonListInput(limit, offset))
			return err
		})

		out.Details = append(out.Details, PageDetail{Page: page, Offset: offset, Success: err == nil})
		if err != nil {
			out.PagesFailed++
			metrics.WarmupItemsTotal.WithLabelValues("list_pages", "failed").Inc()
			logger.Warn("WarmupPokemonListPages page failed",
				zap.Int("page", page),
				zap.Int("offset", offset),
				zap.Error(err),
			)
			continue
		}
		out.PagesWarmed++
		metrics.WarmupItemsTotal.WithLabelValues("list_pages", "warmed").Inc()
	}

	logger.Info("WarmupPokemonListPages finished",
		zap.Int("pages_requested", out.PagesRequested),
		zap.Int("pages_warmed", out.PagesWarmed),
		zap.Int("pages_failed", out.PagesFailed),
	)
	return out
}
