package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pokeproxy/internal/warmup"
	"pokeproxy/pkg/logging/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type warmupReport struct {
	ListPages   *warmup.ListPagesOutcome `json:"listPages,omitempty"`
	Famous      *warmup.FamousOutcome    `json:"famous,omitempty"`
	FamousError string                   `json:"famousError,omitempty"`
}

func newWarmupCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Populate the cache once and print the outcome as JSON.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWarmup(cmd.Context(), cmd, v)
		},
	}
	cmd.Flags().Int("pages", 0, "number of listing pages to warm")
	cmd.Flags().Bool("famous", false, "warm well-known names suggested by the LLM")
	return cmd
}

func runWarmup(ctx context.Context, cmd *cobra.Command, v *viper.Viper) error {
	cfg, logger, err := setup(v)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.close(closeCtx); err != nil {
			logger.Error("cleanup error", zap.Error(err))
		}
	}()

	ctx = logging.WithLogger(ctx, logger)
	var report warmupReport

	if cfg.WarmupPages > 0 {
		out := warmup.NewListPagesJob(a.list).Execute(ctx, cfg.WarmupPages)
		report.ListPages = &out
	}

	if cfg.WarmupFamous {
		job := a.famousJob()
		if job == nil {
			return fmt.Errorf("famous warm-up needs an API key for provider %q", cfg.LLMProvider)
		}
		out, err := job.Execute(ctx)
		if err != nil {
			report.FamousError = err.Error()
		} else {
			report.Famous = &out
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
