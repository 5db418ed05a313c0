package main

import (
	"fmt"

	"sheetexpense/internal/storage"

	"github.com/spf13/cobra"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.config()
			repo, err := a.openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			dialect, dsn, err := storage.ParseURL(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			version, dirty, err := storage.MigrationVersion(dialect, dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d (dirty: %t)\n", dialect, version, dirty)
			return nil
		},
	}
}
