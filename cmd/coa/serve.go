package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/contaplan/coa-engine/pkg/config"
)

// newServeCommand runs the scheduled heal job in the foreground until a
// termination signal arrives.
func newServeCommand(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled hierarchy heal daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !cfg.Heal.Enabled {
				return fmt.Errorf("heal daemon is disabled, set HEAL_ENABLED=true")
			}

			deps, err := InitDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			if err := deps.Scheduler.Start(); err != nil {
				return err
			}
			if runNow {
				deps.Scheduler.RunNow()
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			<-deps.Scheduler.Stop().Done()
			logger.Info("scheduler stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "trigger a heal sweep immediately on startup")

	return cmd
}
