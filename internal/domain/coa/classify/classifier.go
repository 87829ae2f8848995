// Package classify assigns business account types through a deterministic
// cascade: group-rule prefix match, name-keyword vocabulary, leading-digit
// fallback, and a final Asset default.
package classify

import (
	"log/slog"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// Result is a classification outcome with its confidence in [0,1].
type Result struct {
	Type       model.AccountType
	Confidence float64
}

// Classifier matches account names against an ordered keyword vocabulary using
// a single Aho-Corasick pass, then falls back to the leading digit of the code.
type Classifier struct {
	matcher *ahocorasick.Matcher
	rules   []VocabularyRule
	logger  *slog.Logger
}

// NewClassifier builds a classifier over the given vocabulary. Pass
// DefaultVocabulary() for the built-in table.
func NewClassifier(vocabulary []VocabularyRule, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	patterns := make([][]byte, len(vocabulary))
	for i, rule := range vocabulary {
		patterns[i] = []byte(normalizeName(rule.Keyword))
	}
	c := &Classifier{rules: vocabulary, logger: logger}
	if len(patterns) > 0 {
		c.matcher = ahocorasick.NewMatcher(patterns)
	}
	return c
}

// leading-digit fallback table; 7-9 are memorandum/order classes in every
// dialect this engine supports.
var digitFallback = map[byte]Result{
	'1': {model.TypeAsset, 0.60},
	'2': {model.TypeLiability, 0.60},
	'3': {model.TypeEquity, 0.60},
	'4': {model.TypeIncome, 0.50},
	'5': {model.TypeExpense, 0.50},
	'6': {model.TypeCost, 0.50},
	'7': {model.TypeMemorandumOrder, 0.40},
	'8': {model.TypeMemorandumOrder, 0.40},
	'9': {model.TypeMemorandumOrder, 0.40},
}

// Classify runs the full cascade. A group-rule prefix match is ground truth
// (the rules are either system defaults or derived from the dataset's own
// roots) and short-circuits everything else with confidence 1.0.
func (c *Classifier) Classify(code, name string, rules []model.GroupRule) Result {
	code = strings.TrimSpace(code)

	if match := model.MatchGroupRule(code, rules); match != nil {
		return Result{Type: match.Type, Confidence: 1.0}
	}

	if res, ok := c.matchName(name); ok {
		return res
	}

	if len(code) > 0 {
		if res, ok := digitFallback[code[0]]; ok {
			return res
		}
	}

	c.logger.Warn("classification fell through to default",
		slog.String("code", code),
		slog.String("name", name),
	)
	return Result{Type: model.TypeAsset, Confidence: 0.50}
}

// ClassifyRootNameOnly resolves a type from the name alone. It is used when
// deriving group rules from level-1 accounts, so it never consults existing
// rules and always returns a concrete type.
func (c *Classifier) ClassifyRootNameOnly(name string) Result {
	if res, ok := c.matchName(name); ok {
		return res
	}
	c.logger.Warn("root account name matched no vocabulary tier",
		slog.String("name", name),
	)
	return Result{Type: model.TypeAsset, Confidence: 0.50}
}

// matchName returns the earliest vocabulary rule whose keyword occurs in the
// normalized name. Row order is priority order.
func (c *Classifier) matchName(name string) (Result, bool) {
	if c.matcher == nil {
		return Result{}, false
	}
	normalized := normalizeName(name)
	if normalized == "" {
		return Result{}, false
	}

	matches := c.matcher.Match([]byte(normalized))
	if len(matches) == 0 {
		return Result{}, false
	}

	best := -1
	for _, idx := range matches {
		if idx >= 0 && idx < len(c.rules) && (best == -1 || idx < best) {
			best = idx
		}
	}
	if best == -1 {
		return Result{}, false
	}
	rule := c.rules[best]
	return Result{Type: model.AccountType(rule.Type), Confidence: rule.Confidence}, true
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u",
	"ñ", "n", "Ñ", "n", "ü", "u", "Ü", "u",
)

// normalizeName lowercases and folds the accents common in Spanish account
// names so "Depreciación" matches the unaccented vocabulary.
func normalizeName(name string) string {
	return strings.ToLower(accentFolder.Replace(strings.TrimSpace(name)))
}
