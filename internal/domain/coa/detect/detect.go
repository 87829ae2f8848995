// Package detect inspects a sample of raw rows and proposes the numbering
// convention (structure profile) of a chart of accounts. It recognizes a few
// known dialects and falls back to a generic multi-column heuristic.
package detect

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// FormatKind identifies the detected chart-of-accounts dialect.
type FormatKind int

const (
	KindUnknown FormatKind = iota
	KindPUCT
	KindPUCTCompact
	KindDashSegmented
	KindGenericMultiColumn
)

func (k FormatKind) String() string {
	switch k {
	case KindPUCT:
		return "puct"
	case KindPUCTCompact:
		return "puct-compact"
	case KindDashSegmented:
		return "dash-segmented"
	case KindGenericMultiColumn:
		return "generic-multi-column"
	default:
		return "unknown"
	}
}

// Detection is a proposal: the caller decides whether to adopt it. Detection
// itself has no side effects.
type Detection struct {
	Kind       FormatKind
	Profile    model.StructureProfile
	Confidence float64
	// Mapping holds the canonical (code, name) columns after any merge.
	Mapping model.ColumnMapping
	// CodeColumns and PaddingWidths describe the column merge required for
	// multi-column dialects; empty when the code already lives in one column.
	// TotalCodeWidth, when non-zero, right-pads merged codes with zeros to a
	// fixed width (9 for the PUCT dialects).
	CodeColumns    []int
	PaddingWidths  []int
	TotalCodeWidth int
	// Warnings surfaces weak-signal detections (e.g. the single-digit PUCT
	// seed) without failing the run.
	Warnings []string
}

const sampleLimit = 15

var (
	dashCodePattern    = regexp.MustCompile(`^\d{3}-\d{2}-\d{2}$`)
	numericCellPattern = regexp.MustCompile(`^\d+$`)
	loneDigitPattern   = regexp.MustCompile(`^[1-9]$`)
)

// puctHeaderTokens are the column letters used as PUCT headers
// (class, group, subgroup, item, sub-item).
var puctHeaderTokens = []string{"C", "G", "SG", "CP", "CA"}

// headerWords are column-label words seen across source spreadsheets;
// matched fuzzily so accented and truncated variants are caught too.
var headerWords = []string{
	"codigo", "cuenta", "descripcion", "nombre", "tipo", "naturaleza", "nivel",
}

// puctPaddingWidths pads the five PUCT source columns before concatenation
// into the canonical 9-digit code.
var puctPaddingWidths = []int{1, 1, 1, 3, 3}

// Detector proposes structure profiles from raw row samples.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a format detector.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// Detect scans up to the first 15 non-header rows and returns the first
// dialect that matches, in priority order: PUCT, PUCT-compact, dash-segmented,
// generic multi-column, unknown.
func (d *Detector) Detect(sample []model.RawRow) Detection {
	rows := make([]model.RawRow, 0, sampleLimit)
	for _, row := range sample {
		if len(rows) >= sampleLimit {
			break
		}
		if isHeaderRow(row) || isEmptyRow(row) {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return Detection{
			Kind:    KindUnknown,
			Profile: model.DefaultProfile(),
			Mapping: model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
		}
	}

	maxNumericCols := 0
	var compactSeed bool
	for _, row := range rows {
		if isPUCTRow(row) {
			d.logger.Debug("detected puct dialect", slog.Int("row", row.SourceIndex))
			return Detection{
				Kind:           KindPUCT,
				Profile:        model.PUCTProfile(),
				Confidence:     0.95,
				Mapping:        model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
				CodeColumns:    []int{0, 1, 2, 3, 4},
				PaddingWidths:  puctPaddingWidths,
				TotalCodeWidth: 9,
			}
		}
		if !compactSeed && hasLoneDigitSeed(row) {
			compactSeed = true
		}
		if n := numericColumnCount(row); n > maxNumericCols {
			maxNumericCols = n
		}
	}

	if compactSeed {
		d.logger.Debug("detected puct-compact dialect")
		return Detection{
			Kind:           KindPUCTCompact,
			Profile:        model.PUCTProfile(),
			Confidence:     0.60,
			Mapping:        model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
			CodeColumns:    []int{0},
			PaddingWidths:  []int{1},
			TotalCodeWidth: 9,
			Warnings: []string{
				"single-digit codes are a weak PUCT signal; datasets with unrelated small integers in the first column will be misdetected",
			},
		}
	}

	for _, row := range rows {
		if col := dashColumn(row); col >= 0 {
			d.logger.Debug("detected dash-segmented dialect", slog.Int("row", row.SourceIndex))
			return Detection{
				Kind:       KindDashSegmented,
				Profile:    model.DashProfile(),
				Confidence: 0.90,
				Mapping:    model.ColumnMapping{CodeColumn: col, NameColumn: col + 1, TypeColumn: -1},
			}
		}
	}

	if maxNumericCols >= 2 {
		levelCount := maxNumericCols
		if levelCount > 5 {
			levelCount = 5
		}
		lengths := make([]int, levelCount)
		for i := range lengths {
			lengths[i] = (i + 1) * 2
		}
		cols := make([]int, levelCount)
		widths := make([]int, levelCount)
		for i := range cols {
			cols[i] = i
			widths[i] = 2
		}
		d.logger.Debug("falling back to generic multi-column dialect",
			slog.Int("numeric_columns", maxNumericCols),
		)
		return Detection{
			Kind: KindGenericMultiColumn,
			Profile: model.StructureProfile{
				SeparatorMode: false,
				LevelCount:    levelCount,
				LevelLengths:  lengths,
			},
			Confidence:    0.50,
			Mapping:       model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
			CodeColumns:   cols,
			PaddingWidths: widths,
			Warnings:      []string{"generic multi-column heuristic; review the proposed level lengths"},
		}
	}

	d.logger.Debug("no dialect matched")
	return Detection{
		Kind:       KindUnknown,
		Profile:    model.DefaultProfile(),
		Confidence: 0,
		Mapping:    model.ColumnMapping{CodeColumn: 0, NameColumn: 1, TypeColumn: -1},
		Warnings:   []string{"no numbering dialect matched; supply a structure profile manually"},
	}
}

// isPUCTRow reports whether a row presents the five-column
// class/group/subgroup/item/sub-item shape. The item column only counts when
// class, group and subgroup are all populated.
func isPUCTRow(row model.RawRow) bool {
	if len(row.Cells) < 5 {
		return false
	}
	for i := 0; i < 5; i++ {
		cell := row.Cell(i)
		if cell != "" && !numericCellPattern.MatchString(cell) {
			return false
		}
	}
	c, g, sg, cp := row.Cell(0), row.Cell(1), row.Cell(2), row.Cell(3)
	return cp != "" && c != "" && g != "" && sg != ""
}

// hasLoneDigitSeed reports whether any of the first five columns holds a bare
// digit 1-9, the compact PUCT seed.
func hasLoneDigitSeed(row model.RawRow) bool {
	limit := len(row.Cells)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		if loneDigitPattern.MatchString(row.Cell(i)) {
			return true
		}
	}
	return false
}

func dashColumn(row model.RawRow) int {
	for i := range row.Cells {
		if dashCodePattern.MatchString(row.Cell(i)) {
			return i
		}
	}
	return -1
}

func numericColumnCount(row model.RawRow) int {
	n := 0
	for i := range row.Cells {
		if numericCellPattern.MatchString(row.Cell(i)) {
			n++
		}
	}
	return n
}

// isHeaderRow skips rows whose cells are column labels rather than data:
// the PUCT header letters, or words like "codigo"/"descripcion" in any of the
// usual spellings.
func isHeaderRow(row model.RawRow) bool {
	for i := range row.Cells {
		cell := row.Cell(i)
		if cell == "" {
			continue
		}
		upper := strings.ToUpper(cell)
		for _, token := range puctHeaderTokens {
			if upper == token {
				return true
			}
		}
		for _, word := range headerWords {
			if dist := fuzzy.RankMatchNormalizedFold(word, cell); dist >= 0 && dist <= 2 {
				return true
			}
		}
	}
	return false
}

func isEmptyRow(row model.RawRow) bool {
	for i := range row.Cells {
		if row.Cell(i) != "" {
			return false
		}
	}
	return true
}
