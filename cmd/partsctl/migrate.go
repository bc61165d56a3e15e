package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/parts-support/internal/config"
)

func newMigrateCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Applies the embedded SQL migrations on PostgreSQL, or auto-migrates the SQLite file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openEnv(cmd.Context(), *verbose, func(cfg *config.Config) {
				cfg.Postgres.RunMigrations = true
			})
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.store.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("ping store: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready (%s)\n", rt.cfg.Storage.Driver)
			return nil
		},
	}
}
