// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/contaplan/coa-engine/internal/domain/coa/hierarchy"
	"github.com/contaplan/coa-engine/internal/domain/coa/store"
)

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	accounts *store.AccountStore
	profiles store.ProfileRepository
	builder  *hierarchy.Builder
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(accounts *store.AccountStore, profiles store.ProfileRepository, builder *hierarchy.Builder, schedule string, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		accounts: accounts,
		profiles: profiles,
		builder:  builder,
		schedule: schedule,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.healAllCompanies)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the hierarchy heal sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.healAllCompanies()
}

// healAllCompanies repairs the parent chain of every stored chart. Companies
// without an active profile are skipped; their structure was never resolved.
func (s *Scheduler) healAllCompanies() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	s.logger.Info("starting scheduled hierarchy heal")

	companies, err := s.accounts.ListCompanyIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list companies", slog.Any("error", err))
		return
	}

	healed := 0
	failed := 0

	for _, companyID := range companies {
		applied, err := s.HealCompany(ctx, companyID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Debug("no active profile, skipping",
					slog.String("company_id", companyID),
				)
				continue
			}
			s.logger.Warn("failed to heal company",
				slog.String("company_id", companyID),
				slog.Any("error", err),
			)
			failed++
			continue
		}

		s.logger.Debug("healed company hierarchy",
			slog.String("company_id", companyID),
			slog.Int("parents_updated", applied),
		)
		healed++
	}

	s.logger.Info("scheduled hierarchy heal completed",
		slog.Int("companies_healed", healed),
		slog.Int("companies_failed", failed),
	)
}

// HealCompany loads a company's accounts and active profile, recomputes the
// parent chain, and persists the repairs. Returns the number of rows updated.
func (s *Scheduler) HealCompany(ctx context.Context, companyID string) (int, error) {
	named, err := s.profiles.Load(ctx, companyID, store.ActiveProfileName)
	if err != nil {
		return 0, err
	}

	accounts, err := s.accounts.LoadAccounts(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if len(accounts) == 0 {
		return 0, nil
	}

	updates := s.builder.Heal(accounts, named.Profile)
	if len(updates) == 0 {
		return 0, nil
	}

	return s.accounts.ApplyParentUpdates(ctx, companyID, updates)
}
