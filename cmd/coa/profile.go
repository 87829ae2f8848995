package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
	"github.com/contaplan/coa-engine/pkg/config"
)

func newProfileCommand(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage saved structure profiles",
	}
	cmd.PersistentFlags().StringVar(&owner, "owner", "global", "profile owner, a company id or \"global\"")

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := InitDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			profiles, err := deps.ProfileRepo.List(ctx, owner)
			if err != nil {
				return err
			}
			for _, p := range profiles {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t(updated %s)\n", p.Name, p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a saved profile as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := InitDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			named, err := deps.ProfileRepo.Load(ctx, owner, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(named)
		},
	}

	save := &cobra.Command{
		Use:   "save <name> <profile.json>",
		Short: "Save a structure profile from a JSON file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[1], err)
			}
			var profile model.StructureProfile
			if err := json.Unmarshal(data, &profile); err != nil {
				return fmt.Errorf("failed to parse profile: %w", err)
			}

			deps, err := InitDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			named, err := deps.ProfileRepo.Save(ctx, owner, args[0], profile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", named.Name, named.ID)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := InitDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			return deps.ProfileRepo.Delete(ctx, owner, args[0])
		},
	}

	cmd.AddCommand(list, show, save, del)
	return cmd
}
