package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/contaplan/coa-engine/internal/domain/coa/store"
	"github.com/contaplan/coa-engine/pkg/config"
)

func newMigrateCommand(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.Migrate(cfg.Database.DSN()); err != nil {
				return err
			}
			logger.Info("migrations applied")
			return nil
		},
	}
}
