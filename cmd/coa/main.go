package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/contaplan/coa-engine/pkg/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "coa",
		Short: "Chart-of-accounts import and structure intelligence",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newImportCommand(cfg, logger),
		newHealCommand(cfg, logger),
		newProfileCommand(cfg, logger),
		newMigrateCommand(cfg, logger),
		newServeCommand(cfg, logger),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
