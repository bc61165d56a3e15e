package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/parts-support/internal/config"
	"github.com/spec-kit/parts-support/internal/observability"
	"github.com/spec-kit/parts-support/internal/persistence"
	"github.com/spec-kit/parts-support/internal/repository"
)

// Version info set via ldflags at build time.
var Version = "dev"

// cliEnv holds what a subcommand runs against.
type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
	store  repository.Store
	close  func()
}

func openEnv(ctx context.Context, verbose bool, mutate func(*config.Config)) (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	if !verbose {
		cfg.Logger.Level = "error"
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	store, closeStore, err := persistence.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	return &cliEnv{
		cfg:    cfg,
		logger: logger,
		store:  store,
		close: func() {
			closeStore()
			_ = logger.Sync()
		},
	}, nil
}

func newRootCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:          "partsctl",
		Short:        "Operator tool for the parts marketplace support service",
		Long:         "partsctl prepares the database and works the role-request queue. Configuration comes from the same environment as the API.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at the configured LOG_LEVEL instead of errors only")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMigrateCmd(&verbose))
	cmd.AddCommand(newRolesCmd(&verbose))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "partsctl %s\n", Version)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
