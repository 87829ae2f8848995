package classify

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// VocabularyRule is one ordered (keyword, type) entry of the name-matching
// table. Earlier rows win over later ones, so the most specific domain
// categories come first.
type VocabularyRule struct {
	Keyword    string  `csv:"keyword"`
	Type       string  `csv:"type"`
	Confidence float64 `csv:"confidence"`
}

//go:embed vocabulary.csv
var defaultVocabularyCSV []byte

// DefaultVocabulary returns the built-in Spanish keyword table.
func DefaultVocabulary() []VocabularyRule {
	rules, err := LoadVocabulary(strings.NewReader(string(defaultVocabularyCSV)))
	if err != nil {
		// The embedded table is validated by tests; a parse failure here is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("classify: embedded vocabulary invalid: %v", err))
	}
	return rules
}

// LoadVocabulary reads an ordered vocabulary table from CSV. Row order is
// preserved and defines match priority.
func LoadVocabulary(r io.Reader) ([]VocabularyRule, error) {
	var rows []VocabularyRule
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse vocabulary csv: %w", err)
	}

	for i, row := range rows {
		if strings.TrimSpace(row.Keyword) == "" {
			return nil, fmt.Errorf("vocabulary row %d: empty keyword", i+1)
		}
		if !model.AccountType(row.Type).Valid() {
			return nil, fmt.Errorf("vocabulary row %d: unknown account type %q", i+1, row.Type)
		}
		if row.Confidence <= 0 || row.Confidence > 1 {
			return nil, fmt.Errorf("vocabulary row %d: confidence %v out of (0,1]", i+1, row.Confidence)
		}
	}
	return rows, nil
}
