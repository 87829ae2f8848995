package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/contaplan/coa-engine/pkg/config"
)

func newHealCommand(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var companyID string

	cmd := &cobra.Command{
		Use:   "heal",
		Short: "Recompute and repair the parent chain of a company's accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := InitDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			applied, err := deps.Scheduler.HealCompany(ctx, companyID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "updated %d parent links\n", applied)
			return nil
		},
	}

	cmd.Flags().StringVar(&companyID, "company", "", "company identifier (required)")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}
