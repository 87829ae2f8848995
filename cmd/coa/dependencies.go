package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaplan/coa-engine/internal/domain/coa/classify"
	"github.com/contaplan/coa-engine/internal/domain/coa/detect"
	"github.com/contaplan/coa-engine/internal/domain/coa/enrich"
	"github.com/contaplan/coa-engine/internal/domain/coa/hierarchy"
	"github.com/contaplan/coa-engine/internal/domain/coa/importer"
	"github.com/contaplan/coa-engine/internal/domain/coa/store"
	"github.com/contaplan/coa-engine/pkg/config"
	"github.com/contaplan/coa-engine/pkg/cron"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	Logger *slog.Logger

	AccountStore *store.AccountStore
	ProfileRepo  store.ProfileRepository

	Detector   *detect.Detector
	Classifier *classify.Classifier
	Builder    *hierarchy.Builder
	Pipeline   *importer.Pipeline
	Scheduler  *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	deps := &Dependencies{
		Config: cfg,
		Pool:   pool,
		Logger: logger,
	}

	deps.AccountStore = store.NewAccountStore(pool, logger)
	deps.ProfileRepo = store.NewPostgresProfileRepository(pool)

	deps.Detector = detect.NewDetector(logger)
	deps.Classifier = classify.NewClassifier(classify.DefaultVocabulary(), logger)
	deps.Builder = hierarchy.NewBuilder(logger)

	deps.Pipeline = importer.NewPipeline(deps.Detector, deps.Classifier, deps.AccountStore, logger).
		WithChunkSize(cfg.Import.ChunkSize)
	if cfg.Enrichment.URL != "" {
		client := enrich.NewClient(cfg.Enrichment.URL, cfg.Enrichment.RequestsPerSecond, logger)
		deps.Pipeline = deps.Pipeline.WithEnricher(client)
	}

	deps.Scheduler = cron.NewScheduler(deps.AccountStore, deps.ProfileRepo, deps.Builder, cfg.Heal.Schedule, logger)

	return deps, nil
}

// Close releases pooled resources.
func (d *Dependencies) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
}
