// Package importer orchestrates a chart-of-accounts import: format detection,
// column mapping, validation, classification, optional remote enrichment,
// group-rule consolidation, profile self-correction and chunked persistence.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/contaplan/coa-engine/internal/domain/coa/classify"
	"github.com/contaplan/coa-engine/internal/domain/coa/detect"
	"github.com/contaplan/coa-engine/internal/domain/coa/enrich"
	"github.com/contaplan/coa-engine/internal/domain/coa/hierarchy"
	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// State tracks the job through the pipeline. Terminal states are Done,
// Cancelled and Failed.
type State int

const (
	StateRawLoaded State = iota
	StateDetected
	StateColumnMapped
	StateRangeFiltered
	StateValidated
	StateClassified
	StateEnriched
	StateConsolidated
	StateSelfCorrected
	StateCommitting
	StateDone
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRawLoaded:
		return "raw_loaded"
	case StateDetected:
		return "detected"
	case StateColumnMapped:
		return "column_mapped"
	case StateRangeFiltered:
		return "range_filtered"
	case StateValidated:
		return "validated"
	case StateClassified:
		return "classified"
	case StateEnriched:
		return "enriched"
	case StateConsolidated:
		return "consolidated"
	case StateSelfCorrected:
		return "self_corrected"
	case StateCommitting:
		return "committing"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultChunkSize is the commit batch size.
const DefaultChunkSize = 500

// Committer persists one chunk of accounts, all-or-nothing.
type Committer interface {
	BulkInsertAccounts(ctx context.Context, companyID string, accounts []model.Account) error
}

// Enricher suggests account types from names; enrich.Client implements it.
type Enricher interface {
	Enrich(ctx context.Context, req enrich.Request) (map[string]enrich.Result, error)
}

// RowRange is an inclusive window over source row indexes. Last <= 0 leaves
// the window open-ended.
type RowRange struct {
	First int
	Last  int
}

// Options configures a single import job.
type Options struct {
	CompanyID string
	// Profile, when set, skips detection. Mapping must then be set too.
	Profile *model.StructureProfile
	Mapping model.ColumnMapping
	// Range drops rows outside the window before validation.
	Range *RowRange
	// GroupRules seed the classifier; consolidation replaces them with rules
	// derived from the dataset's own roots.
	GroupRules []model.GroupRule
	// EnrichTypes turns on the remote enrichment step.
	EnrichTypes bool
	// Progress, when set, is called after each committed chunk.
	Progress func(committed, total int)
}

// Summary reports job counts and warnings regardless of outcome.
type Summary struct {
	JobID      uuid.UUID
	State      State
	RowsTotal  int
	Processed  int
	Skipped    int
	Duplicates int
	Committed  int
	Warnings   []string
	Profile    model.StructureProfile
	GroupRules []model.GroupRule
}

// Pipeline runs import jobs. Jobs for the same company are serialized
// internally so concurrent imports cannot interleave profile mutation.
type Pipeline struct {
	detector   *detect.Detector
	classifier *classify.Classifier
	enricher   Enricher
	committer  Committer
	chunkSize  int
	logger     *slog.Logger

	mu           sync.Mutex
	companyLocks map[string]*sync.Mutex
}

// NewPipeline creates an import pipeline. The enricher may be nil when no
// enrichment service is configured.
func NewPipeline(detector *detect.Detector, classifier *classify.Classifier, committer Committer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		detector:     detector,
		classifier:   classifier,
		committer:    committer,
		chunkSize:    DefaultChunkSize,
		logger:       logger,
		companyLocks: make(map[string]*sync.Mutex),
	}
}

// WithEnricher adds the optional enrichment step.
func (p *Pipeline) WithEnricher(e Enricher) *Pipeline {
	p.enricher = e
	return p
}

// WithChunkSize overrides the commit batch size.
func (p *Pipeline) WithChunkSize(n int) *Pipeline {
	if n > 0 {
		p.chunkSize = n
	}
	return p
}

func (p *Pipeline) companyLock(companyID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.companyLocks[companyID]
	if !ok {
		lock = &sync.Mutex{}
		p.companyLocks[companyID] = lock
	}
	return lock
}

// Run executes the full pipeline over a materialized row set. The returned
// Summary is populated even when err is non-nil; on commit failure or
// cancellation it reports how many rows made it in before the stop.
func (p *Pipeline) Run(ctx context.Context, rows []model.RawRow, opts Options) (*Summary, error) {
	lock := p.companyLock(opts.CompanyID)
	lock.Lock()
	defer lock.Unlock()

	summary := &Summary{
		JobID:     uuid.New(),
		State:     StateRawLoaded,
		RowsTotal: len(rows),
	}
	log := p.logger.With(slog.String("job_id", summary.JobID.String()), slog.String("company_id", opts.CompanyID))

	if len(rows) == 0 {
		summary.State = StateFailed
		return summary, ErrEmptyBatch
	}

	// Detected
	profile, mapping, rows := p.resolveProfile(rows, opts, summary, log)
	summary.State = StateDetected

	// ColumnMapped: after a multi-column merge the canonical layout is
	// (code, name), so the original mapping no longer applies.
	summary.State = StateColumnMapped

	// RangeFiltered
	if opts.Range != nil {
		kept := rows[:0:0]
		for _, row := range rows {
			if row.SourceIndex >= opts.Range.First && (opts.Range.Last <= 0 || row.SourceIndex <= opts.Range.Last) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	summary.State = StateRangeFiltered

	// Validated + duplicate flagging
	accounts := p.validate(rows, mapping, summary, log)
	summary.State = StateValidated
	if len(accounts) == 0 {
		summary.State = StateFailed
		return summary, fmt.Errorf("%w: every row was skipped by validation", ErrEmptyBatch)
	}

	// Classified
	rules := opts.GroupRules
	for i := range accounts {
		accounts[i].Level = hierarchy.Level(accounts[i].Code, profile)
		accounts[i].ParentCode = hierarchy.Parent(accounts[i].Code, profile)
		if accounts[i].Type == "" {
			res := p.classifier.Classify(accounts[i].Code, accounts[i].Name, rules)
			accounts[i].Type = res.Type
			accounts[i].Confidence = res.Confidence
		}
	}
	summary.State = StateClassified

	// Enriched (optional, never fatal)
	if opts.EnrichTypes && p.enricher != nil {
		p.enrichAccounts(ctx, accounts, profile, opts, summary, log)
	}
	summary.State = StateEnriched

	// Consolidated
	rules = deriveGroupRules(accounts, p.classifier)
	applyGroupRules(accounts, rules)
	summary.GroupRules = rules
	summary.State = StateConsolidated

	// SelfCorrected
	maxLevel := 0
	for i := range accounts {
		if lvl := observedLevel(accounts[i].Code, profile); lvl > maxLevel {
			maxLevel = lvl
		}
	}
	if corrected, changed := selfCorrectProfile(profile, maxLevel); changed {
		log.Info("profile extended to observed depth",
			slog.Int("declared_levels", profile.LevelCount),
			slog.Int("observed_levels", maxLevel),
		)
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("profile declared %d levels but data reaches level %d; profile extended", profile.LevelCount, maxLevel))
		profile = corrected
		for i := range accounts {
			accounts[i].Level = hierarchy.Level(accounts[i].Code, profile)
			accounts[i].ParentCode = hierarchy.Parent(accounts[i].Code, profile)
		}
	}
	summary.Profile = profile
	summary.State = StateSelfCorrected

	// Committing: sequential chunks in post-consolidation order, cancellation
	// checked only at chunk boundaries.
	summary.State = StateCommitting
	summary.Processed = len(accounts)
	for start := 0; start < len(accounts); start += p.chunkSize {
		if err := ctx.Err(); err != nil {
			log.Info("import cancelled at chunk boundary", slog.Int("committed", summary.Committed))
			summary.State = StateCancelled
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("cancelled after committing %d of %d rows", summary.Committed, len(accounts)))
			return summary, fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		end := start + p.chunkSize
		if end > len(accounts) {
			end = len(accounts)
		}
		if err := p.committer.BulkInsertAccounts(ctx, opts.CompanyID, accounts[start:end]); err != nil {
			chunkFailures.Inc()
			log.Error("commit chunk failed",
				slog.Int("chunk_start", start),
				slog.Int("committed", summary.Committed),
				slog.Any("error", err),
			)
			summary.State = StateFailed
			return summary, fmt.Errorf("%w: rows %d-%d: %v", ErrCommitChunkFailure, start, end-1, err)
		}
		chunksCommitted.Inc()
		summary.Committed += end - start
		if opts.Progress != nil {
			opts.Progress(summary.Committed, len(accounts))
		}
	}

	summary.State = StateDone
	log.Info("import finished",
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("duplicates", summary.Duplicates),
	)
	return summary, nil
}

// resolveProfile uses the caller's profile when given, otherwise runs format
// detection and applies any column merge the detected dialect requires,
// returning the possibly-rewritten rows.
func (p *Pipeline) resolveProfile(rows []model.RawRow, opts Options, summary *Summary, log *slog.Logger) (model.StructureProfile, model.ColumnMapping, []model.RawRow) {
	if opts.Profile != nil {
		return opts.Profile.Clone(), opts.Mapping, rows
	}

	det := p.detector.Detect(rows)
	summary.Warnings = append(summary.Warnings, det.Warnings...)
	if det.Kind == detect.KindUnknown {
		summary.Warnings = append(summary.Warnings,
			"format detection was ambiguous; using a single-level fallback profile")
	}
	log.Info("format detected",
		slog.String("kind", det.Kind.String()),
		slog.Float64("confidence", det.Confidence),
	)

	if len(det.CodeColumns) > 0 {
		rows = detect.MergeColumns(rows, det.CodeColumns, det.PaddingWidths, det.TotalCodeWidth)
	}
	return det.Profile, det.Mapping, rows
}

// validate maps rows to accounts, dropping rows whose code does not start
// with a digit or whose name is empty, and flags every occurrence of a
// repeated code.
func (p *Pipeline) validate(rows []model.RawRow, mapping model.ColumnMapping, summary *Summary, log *slog.Logger) []model.Account {
	type occurrence struct {
		accIndex  int
		sourceRow int
	}
	accounts := make([]model.Account, 0, len(rows))
	firstSeen := make(map[string]occurrence)

	for _, row := range rows {
		code := row.Cell(mapping.CodeColumn)
		name := row.Cell(mapping.NameColumn)
		if code == "" || code[0] < '0' || code[0] > '9' || name == "" {
			summary.Skipped++
			rowsSkipped.Inc()
			continue
		}

		acc := model.Account{ID: uuid.New(), Code: code, Name: name}
		if mapping.TypeColumn >= 0 {
			if t := model.AccountType(strings.TrimSpace(row.Cell(mapping.TypeColumn))); t.Valid() {
				acc.Type = t
				acc.Confidence = 1.0
			}
		}

		if first, dup := firstSeen[code]; dup {
			acc.IsDuplicate = true
			if !accounts[first.accIndex].IsDuplicate {
				accounts[first.accIndex].IsDuplicate = true
				summary.Duplicates++
				duplicateCodes.Inc()
			}
			summary.Duplicates++
			duplicateCodes.Inc()
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("duplicate code %q at source row %d (first seen at row %d)", code, row.SourceIndex, first.sourceRow))
		} else {
			firstSeen[code] = occurrence{accIndex: len(accounts), sourceRow: row.SourceIndex}
		}
		accounts = append(accounts, acc)
		rowsProcessed.Inc()
	}

	if summary.Skipped > 0 {
		log.Warn("rows skipped by validation", slog.Int("skipped", summary.Skipped))
	}
	return accounts
}

// enrichAccounts sends the batch to the remote service and overrides local
// types on per-code matches. Service failure downgrades to a warning.
func (p *Pipeline) enrichAccounts(ctx context.Context, accounts []model.Account, profile model.StructureProfile, opts Options, summary *Summary, log *slog.Logger) {
	refs := make([]enrich.AccountRef, len(accounts))
	for i, acc := range accounts {
		refs[i] = enrich.AccountRef{Code: acc.Code, Name: acc.Name, ID: acc.ID.String()}
	}
	existing := make([]string, len(model.AccountTypes))
	for i, t := range model.AccountTypes {
		existing[i] = string(t)
	}

	results, err := p.enricher.Enrich(ctx, enrich.Request{
		CompanyID:       opts.CompanyID,
		Accounts:        refs,
		StructureConfig: profile,
		Options:         enrich.Options{ExistingTypes: existing},
	})
	if err != nil {
		log.Warn("enrichment unavailable, keeping local classification", slog.Any("error", err))
		summary.Warnings = append(summary.Warnings, "enrichment service unavailable; local classification kept")
		return
	}

	overridden := 0
	for i := range accounts {
		res, ok := results[accounts[i].Code]
		if !ok {
			continue
		}
		t := model.AccountType(res.Type())
		if !t.Valid() {
			continue
		}
		accounts[i].Type = t
		accounts[i].Confidence = res.Confidence
		overridden++
	}
	log.Info("enrichment merged", slog.Int("overridden", overridden))
}
