package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/contaplan/coa-engine/internal/domain/coa/importer"
	"github.com/contaplan/coa-engine/internal/domain/coa/model"
	"github.com/contaplan/coa-engine/internal/domain/coa/rowsource"
	"github.com/contaplan/coa-engine/internal/domain/coa/store"
	"github.com/contaplan/coa-engine/pkg/config"
)

func newImportCommand(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var (
		companyID   string
		profileName string
		codeColumn  int
		nameColumn  int
		typeColumn  int
		firstRow    int
		lastRow     int
		enrich      bool
		replace     bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a chart of accounts from a CSV or Excel file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			deps, err := InitDependencies(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			rows, err := readRows(args[0])
			if err != nil {
				return err
			}

			opts := importer.Options{
				CompanyID:   companyID,
				EnrichTypes: enrich,
				Progress: func(committed, total int) {
					logger.Info("chunk committed",
						slog.Int("committed", committed),
						slog.Int("total", total),
					)
				},
			}
			if profileName != "" {
				named, err := loadProfile(ctx, deps.ProfileRepo, companyID, profileName)
				if err != nil {
					return err
				}
				opts.Profile = &named.Profile
				opts.Mapping = model.ColumnMapping{
					CodeColumn: codeColumn,
					NameColumn: nameColumn,
					TypeColumn: typeColumn,
				}
			}
			if firstRow > 0 || lastRow > 0 {
				opts.Range = &importer.RowRange{First: firstRow, Last: lastRow}
			}

			if replace {
				removed, err := deps.AccountStore.DeleteAccounts(ctx, companyID)
				if err != nil {
					return err
				}
				logger.Info("removed existing accounts", slog.Int64("removed", removed))
			}

			summary, err := deps.Pipeline.Run(ctx, rows, opts)
			if summary != nil {
				printSummary(cmd, summary)
			}
			if err != nil {
				return err
			}

			// Remember the resolved structure so scheduled heal runs can use it.
			if _, err := deps.ProfileRepo.Save(ctx, companyID, store.ActiveProfileName, summary.Profile); err != nil {
				logger.Warn("failed to save active profile", slog.Any("error", err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&companyID, "company", "", "company identifier (required)")
	_ = cmd.MarkFlagRequired("company")
	cmd.Flags().StringVar(&profileName, "profile", "", "saved profile name, skips structure detection")
	cmd.Flags().IntVar(&codeColumn, "code-col", 0, "code column index when --profile is set")
	cmd.Flags().IntVar(&nameColumn, "name-col", 1, "name column index when --profile is set")
	cmd.Flags().IntVar(&typeColumn, "type-col", -1, "type column index when --profile is set, -1 for none")
	cmd.Flags().IntVar(&firstRow, "first", 0, "first source row to import, 0 from the start")
	cmd.Flags().IntVar(&lastRow, "last", 0, "last source row to import, 0 to the end")
	cmd.Flags().BoolVar(&enrich, "enrich", false, "ask the enrichment service for type suggestions")
	cmd.Flags().BoolVar(&replace, "replace", false, "delete the company's existing accounts first")

	return cmd
}

// readRows opens the input file and picks the reader by extension.
func readRows(path string) ([]model.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls", ".xlsm":
		return rowsource.ReadExcel(f)
	default:
		return rowsource.ReadCSV(f)
	}
}

// loadProfile resolves a named profile, trying the company's own profiles
// before the shared templates.
func loadProfile(ctx context.Context, repo store.ProfileRepository, companyID, name string) (*store.NamedProfile, error) {
	named, err := repo.Load(ctx, companyID, name)
	if err == nil {
		return named, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return repo.Load(ctx, store.GlobalOwner, name)
}

func printSummary(cmd *cobra.Command, s *importer.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "job %s finished in state %s\n", s.JobID, s.State)
	fmt.Fprintf(out, "rows: %d total, %d processed, %d skipped, %d duplicates, %d committed\n",
		s.RowsTotal, s.Processed, s.Skipped, s.Duplicates, s.Committed)
	if s.Profile.SeparatorMode {
		fmt.Fprintf(out, "structure: separator %q, levels %v\n", s.Profile.Separator, s.Profile.LevelLengths)
	} else {
		fmt.Fprintf(out, "structure: fixed lengths, levels %v\n", s.Profile.LevelLengths)
	}
	for _, rule := range s.GroupRules {
		fmt.Fprintf(out, "group rule: %s* -> %s\n", rule.Prefix, rule.Type)
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}
