package main

import (
	"fmt"

	"pokeproxy/internal/config"
	"pokeproxy/pkg/logging/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Linker flags.
var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "pokeproxy",
		Short:         "Read-through caching proxy for PokeAPI.",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			return config.BindFlags(v, cmd.Flags())
		},
		// serve is the default
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	pf := root.PersistentFlags()
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("cache-backend", "", "cache backend: redis or memory")
	pf.String("redis-url", "", "redis connection url")

	addServeFlags(root.Flags())
	root.AddCommand(newServeCmd(v), newWarmupCmd(v))
	return root
}

// setup resolves configuration and installs the process logger.
func setup(v *viper.Viper) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(logging.Options{Env: cfg.Env, Level: cfg.LogLevel})
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	logging.SetDefault(logger)
	return cfg, logger, nil
}
