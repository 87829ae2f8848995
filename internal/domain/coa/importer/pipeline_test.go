package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaplan/coa-engine/internal/domain/coa/classify"
	"github.com/contaplan/coa-engine/internal/domain/coa/detect"
	"github.com/contaplan/coa-engine/internal/domain/coa/enrich"
	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

type fakeCommitter struct {
	chunks   [][]model.Account
	failAt   int // chunk index to fail on, -1 for never
	onCommit func(chunk int)
}

func newFakeCommitter() *fakeCommitter {
	return &fakeCommitter{failAt: -1}
}

func (f *fakeCommitter) BulkInsertAccounts(_ context.Context, _ string, accounts []model.Account) error {
	chunk := len(f.chunks)
	if f.onCommit != nil {
		f.onCommit(chunk)
	}
	if f.failAt >= 0 && chunk == f.failAt {
		return errors.New("database gone")
	}
	copied := make([]model.Account, len(accounts))
	copy(copied, accounts)
	f.chunks = append(f.chunks, copied)
	return nil
}

func (f *fakeCommitter) all() []model.Account {
	var out []model.Account
	for _, c := range f.chunks {
		out = append(out, c...)
	}
	return out
}

type fakeEnricher struct {
	results map[string]enrich.Result
	err     error
	called  bool
}

func (f *fakeEnricher) Enrich(_ context.Context, _ enrich.Request) (map[string]enrich.Result, error) {
	f.called = true
	return f.results, f.err
}

func newPipeline(committer Committer) *Pipeline {
	return NewPipeline(
		detect.NewDetector(nil),
		classify.NewClassifier(classify.DefaultVocabulary(), nil),
		committer,
		nil,
	)
}

func row(index int, cells ...string) model.RawRow {
	return model.RawRow{SourceIndex: index, Cells: cells}
}

func TestRunPUCTEndToEnd(t *testing.T) {
	committer := newFakeCommitter()
	p := newPipeline(committer)

	rows := []model.RawRow{
		row(0, "C", "G", "SG", "CP", "CA", "DESCRIPCION"),
		row(1, "1", "1", "1", "001", "000", "CAJA PRINCIPAL"),
		row(2, "1", "0", "0", "000", "000", "ACTIVO"),
		row(3, "4", "0", "0", "000", "000", "INGRESOS OPERACIONALES"),
		row(4, "4", "1", "0", "000", "000", "VENTAS"),
	}

	summary, err := p.Run(context.Background(), rows, Options{CompanyID: "co-1"})
	require.NoError(t, err)

	assert.Equal(t, StateDone, summary.State)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 4, summary.Committed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 5, summary.Profile.LevelCount)

	byCode := make(map[string]model.Account)
	for _, acc := range committer.all() {
		byCode[acc.Code] = acc
	}
	require.Len(t, byCode, 4)

	// Merged 9-digit codes with levels and parents from the detected profile.
	caja := byCode["111001000"]
	assert.Equal(t, 4, caja.Level)
	require.NotNil(t, caja.ParentCode)
	assert.Equal(t, "111", *caja.ParentCode)

	root := byCode["100000000"]
	assert.Equal(t, 1, root.Level)
	assert.Nil(t, root.ParentCode)

	// Consolidation types every account from its root's name, confidence 1.0.
	assert.Equal(t, model.TypeAsset, caja.Type)
	assert.Equal(t, 1.0, caja.Confidence)
	assert.Equal(t, model.TypeIncome, byCode["410000000"].Type)

	// Derived rules surface in the summary for profile persistence.
	require.Len(t, summary.GroupRules, 2)
	assert.Equal(t, "1", summary.GroupRules[0].Prefix)
	assert.Equal(t, model.TypeAsset, summary.GroupRules[0].Type)
	assert.Equal(t, "4", summary.GroupRules[1].Prefix)
	assert.Equal(t, model.TypeIncome, summary.GroupRules[1].Type)
}

func TestRunValidationSkipsBadRows(t *testing.T) {
	committer := newFakeCommitter()
	p := newPipeline(committer)

	profile := model.DashProfile()
	rows := []model.RawRow{
		row(0, "100-00-00", "ACTIVO"),
		row(1, "X00-00-00", "CODE DOES NOT START WITH DIGIT"),
		row(2, "200-00-00", "   "),
		row(3, "", "EMPTY CODE"),
		row(4, "300-00-00", "PATRIMONIO"),
	}

	summary, err := p.Run(context.Background(), rows, Options{
		CompanyID: "co-1",
		Profile:   &profile,
		Mapping:   model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 3, summary.Skipped)
	assert.Len(t, committer.all(), 2)
}

func TestRunDuplicatesFlaggedNotRemoved(t *testing.T) {
	committer := newFakeCommitter()
	p := newPipeline(committer)

	profile := model.DashProfile()
	rows := []model.RawRow{
		row(0, "100-00-00", "ACTIVO"),
		row(1, "100-10-00", "EFECTIVO"),
		row(2, "100-00-00", "ACTIVO OTRA VEZ"),
	}

	summary, err := p.Run(context.Background(), rows, Options{
		CompanyID: "co-1",
		Profile:   &profile,
		Mapping:   model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
	})
	require.NoError(t, err)

	committed := committer.all()
	require.Len(t, committed, 3, "duplicates are kept, not removed")
	assert.True(t, committed[0].IsDuplicate, "first occurrence is flagged too")
	assert.False(t, committed[1].IsDuplicate)
	assert.True(t, committed[2].IsDuplicate)
	assert.Equal(t, 2, summary.Duplicates)

	found := false
	for _, w := range summary.Warnings {
		if w == `duplicate code "100-00-00" at source row 2 (first seen at row 0)` {
			found = true
		}
	}
	assert.True(t, found, "warnings: %v", summary.Warnings)
}

func TestRunRangeFilter(t *testing.T) {
	committer := newFakeCommitter()
	p := newPipeline(committer)

	profile := model.DashProfile()
	rows := []model.RawRow{
		row(0, "100-00-00", "ACTIVO"),
		row(1, "200-00-00", "PASIVO"),
		row(2, "300-00-00", "PATRIMONIO"),
	}

	summary, err := p.Run(context.Background(), rows, Options{
		CompanyID: "co-1",
		Profile:   &profile,
		Mapping:   model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
		Range:     &RowRange{First: 1, Last: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	require.Len(t, committer.all(), 1)
	assert.Equal(t, "200-00-00", committer.all()[0].Code)
}

func TestRunSelfCorrectsShallowProfile(t *testing.T) {
	committer := newFakeCommitter()
	p := newPipeline(committer)

	profile := model.StructureProfile{LevelCount: 2, LevelLengths: []int{1, 2}}
	rows := []model.RawRow{
		row(0, "1", "ACTIVO"),
		row(1, "12", "EFECTIVO"),
		row(2, "1234", "CAJA MENOR"),
	}

	summary, err := p.Run(context.Background(), rows, Options{
		CompanyID: "co-1",
		Profile:   &profile,
		Mapping:   model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Profile.LevelCount)
	assert.Equal(t, []int{1, 2, 4}, summary.Profile.LevelLengths)
	// The caller's profile is job-scoped state; the original is untouched.
	assert.Equal(t, 2, profile.LevelCount)

	byCode := make(map[string]model.Account)
	for _, acc := range committer.all() {
		byCode[acc.Code] = acc
	}
	deep := byCode["1234"]
	assert.Equal(t, 3, deep.Level)
	require.NotNil(t, deep.ParentCode)
	assert.Equal(t, "12", *deep.ParentCode)

	assert.NotEmpty(t, summary.Warnings)
}

func TestRunCommitChunkFailureAborts(t *testing.T) {
	committer := newFakeCommitter()
	committer.failAt = 1
	p := newPipeline(committer).WithChunkSize(2)

	profile := model.DefaultProfile()
	rows := make([]model.RawRow, 0, 5)
	for i := 0; i < 5; i++ {
		rows = append(rows, row(i, fmt.Sprintf("%d", i+1), fmt.Sprintf("CUENTA %d", i+1)))
	}

	summary, err := p.Run(context.Background(), rows, Options{
		CompanyID: "co-1",
		Profile:   &profile,
		Mapping:   model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommitChunkFailure)
	assert.Equal(t, StateFailed, summary.State)
	assert.Equal(t, 2, summary.Committed, "first chunk is retained")
	assert.Len(t, committer.chunks, 1)
}

func TestRunCancellationAtChunkBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	committer := newFakeCommitter()
	committer.onCommit = func(chunk int) {
		if chunk == 0 {
			cancel()
		}
	}
	p := newPipeline(committer).WithChunkSize(2)

	profile := model.DefaultProfile()
	rows := make([]model.RawRow, 0, 6)
	for i := 0; i < 6; i++ {
		rows = append(rows, row(i, fmt.Sprintf("%d", i+1), fmt.Sprintf("CUENTA %d", i+1)))
	}

	summary, err := p.Run(ctx, rows, Options{
		CompanyID: "co-1",
		Profile:   &profile,
		Mapping:   model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, StateCancelled, summary.State)
	assert.Equal(t, 2, summary.Committed, "committed chunks are retained")
	assert.Len(t, committer.chunks, 1, "cancellation is only observed between chunks")
}

func TestRunEnrichmentOverride(t *testing.T) {
	committer := newFakeCommitter()
	enricher := &fakeEnricher{
		results: map[string]enrich.Result{
			"12": {Code: "12", PredictedType: "Income", Confidence: 0.93},
		},
	}
	p := newPipeline(committer).WithEnricher(enricher)

	// No level-1 rows, so consolidation derives no rules and the enrichment
	// override survives to the commit.
	profile := model.StructureProfile{LevelCount: 2, LevelLengths: []int{1, 2}}
	rows := []model.RawRow{
		row(0, "12", "SIN NOMBRE UTIL"),
		row(1, "13", "ELEMENTO TRECE"),
	}

	_, err := p.Run(context.Background(), rows, Options{
		CompanyID:   "co-1",
		Profile:     &profile,
		Mapping:     model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
		EnrichTypes: true,
	})
	require.NoError(t, err)
	require.True(t, enricher.called)

	byCode := make(map[string]model.Account)
	for _, acc := range committer.all() {
		byCode[acc.Code] = acc
	}
	assert.Equal(t, model.TypeIncome, byCode["12"].Type)
	assert.Equal(t, 0.93, byCode["12"].Confidence)
	// Unmatched local rows keep their local classification.
	assert.Equal(t, model.TypeAsset, byCode["13"].Type)
}

func TestRunEnrichmentFailureIsNonFatal(t *testing.T) {
	committer := newFakeCommitter()
	enricher := &fakeEnricher{err: enrich.ErrUnavailable}
	p := newPipeline(committer).WithEnricher(enricher)

	profile := model.DashProfile()
	rows := []model.RawRow{
		row(0, "100-00-00", "ACTIVO"),
	}

	summary, err := p.Run(context.Background(), rows, Options{
		CompanyID:   "co-1",
		Profile:     &profile,
		Mapping:     model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
		EnrichTypes: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, summary.State)

	found := false
	for _, w := range summary.Warnings {
		if w == "enrichment service unavailable; local classification kept" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunTypeColumnWins(t *testing.T) {
	committer := newFakeCommitter()
	p := newPipeline(committer)

	// A valid explicit type column short-circuits classification; an invalid
	// value falls through to the cascade.
	profile := model.StructureProfile{LevelCount: 2, LevelLengths: []int{1, 2}}
	rows := []model.RawRow{
		row(0, "41", "GASTOS VARIOS", "Income"),
		row(1, "42", "GASTOS VARIOS", "NotAType"),
	}

	_, err := p.Run(context.Background(), rows, Options{
		CompanyID: "co-1",
		Profile:   &profile,
		Mapping:   model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: 2},
	})
	require.NoError(t, err)

	byCode := make(map[string]model.Account)
	for _, acc := range committer.all() {
		byCode[acc.Code] = acc
	}
	assert.Equal(t, model.TypeIncome, byCode["41"].Type)
	assert.Equal(t, 1.0, byCode["41"].Confidence)
	assert.Equal(t, model.TypeExpense, byCode["42"].Type, "keyword tier catches GASTOS")
}

func TestRunEmptyBatch(t *testing.T) {
	p := newPipeline(newFakeCommitter())

	summary, err := p.Run(context.Background(), nil, Options{CompanyID: "co-1"})
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Equal(t, StateFailed, summary.State)
}

func TestDeriveGroupRulesPrefersDescriptiveNames(t *testing.T) {
	classifier := classify.NewClassifier(classify.DefaultVocabulary(), nil)

	accounts := []model.Account{
		{Code: "1", Name: "X", Level: 1},
		{Code: "1", Name: "ACTIVO", Level: 1},
		{Code: "4", Name: "INGRESOS", Level: 1},
		{Code: "4", Name: "INGRESOS OPERACIONALES DEL PERIODO", Level: 1},
		{Code: "41", Name: "VENTAS", Level: 2},
	}

	rules := deriveGroupRules(accounts, classifier)
	require.Len(t, rules, 2)
	assert.Equal(t, model.GroupRule{Prefix: "1", Type: model.TypeAsset}, rules[0])
	assert.Equal(t, model.GroupRule{Prefix: "4", Type: model.TypeIncome}, rules[1])
}

func TestObservedLevelExceedsProfile(t *testing.T) {
	profile := model.StructureProfile{LevelCount: 2, LevelLengths: []int{1, 2}}

	assert.Equal(t, 1, observedLevel("1", profile))
	assert.Equal(t, 2, observedLevel("12", profile))
	assert.Equal(t, 3, observedLevel("123", profile))
	assert.Equal(t, 3, observedLevel("1234", profile))
	assert.Equal(t, 4, observedLevel("12345", profile))
}

func TestSelfCorrectProfileNeverShrinks(t *testing.T) {
	profile := model.PUCTProfile()

	same, changed := selfCorrectProfile(profile, 3)
	assert.False(t, changed)
	assert.Equal(t, profile, same)

	extended, changed := selfCorrectProfile(profile, 6)
	assert.True(t, changed)
	assert.Equal(t, 6, extended.LevelCount)
	assert.Equal(t, []int{1, 2, 3, 6, 9, 11}, extended.LevelLengths)
	// Clone semantics: the input profile is untouched.
	assert.Equal(t, 5, profile.LevelCount)
}
