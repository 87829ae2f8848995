package classify

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	return NewClassifier(DefaultVocabulary(), slog.Default())
}

func TestClassify_GroupRuleOverridesName(t *testing.T) {
	c := newTestClassifier(t)
	rules := []model.GroupRule{{Prefix: "4", Type: model.TypeIncome}}

	// "gasto" in the name would classify as Expense, but the group rule for
	// prefix 4 is ground truth.
	res := c.Classify("41010", "gasto operativo", rules)
	assert.Equal(t, model.TypeIncome, res.Type)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestClassify_LongestPrefixWins(t *testing.T) {
	c := newTestClassifier(t)
	rules := []model.GroupRule{
		{Prefix: "1", Type: model.TypeAsset},
		{Prefix: "13", Type: model.TypeContraRegulator},
	}

	res := c.Classify("13005", "x", rules)
	assert.Equal(t, model.TypeContraRegulator, res.Type)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestClassify_NameKeywordTiers(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name       string
		wantType   model.AccountType
		confidence float64
	}{
		{"Depreciación Acumulada Edificios", model.TypeContraRegulator, 0.85},
		{"RESULTADO DEL EJERCICIO", model.TypeResult, 0.85},
		{"Cuentas Contingentes Deudoras", model.TypeContingent, 0.80},
		{"Cuentas de Orden", model.TypeMemorandumOrder, 0.80},
		{"Costo de Mercaderia Vendida", model.TypeCost, 0.78},
		{"Capital Social", model.TypeEquity, 0.76},
		{"Ingresos Financieros", model.TypeIncome, 0.75},
		{"Sueldos y Salarios", model.TypeExpense, 0.72},
		{"Cuentas por Pagar", model.TypeLiability, 0.70},
		{"Caja Moneda Nacional", model.TypeAsset, 0.70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Classify("", tt.name, nil)
			assert.Equal(t, tt.wantType, res.Type)
			assert.InDelta(t, tt.confidence, res.Confidence, 0.001)
		})
	}
}

func TestClassify_TierOrderBeatsLaterKeywords(t *testing.T) {
	c := newTestClassifier(t)

	// Contains both "reguladora" (contra tier) and "activo" (asset tier);
	// the earlier tier wins.
	res := c.Classify("", "Cuenta Reguladora del Activo", nil)
	assert.Equal(t, model.TypeContraRegulator, res.Type)
}

func TestClassify_DigitFallback(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		code       string
		wantType   model.AccountType
		confidence float64
	}{
		{"1100", model.TypeAsset, 0.60},
		{"2100", model.TypeLiability, 0.60},
		{"3100", model.TypeEquity, 0.60},
		{"4100", model.TypeIncome, 0.50},
		{"5100", model.TypeExpense, 0.50},
		{"6100", model.TypeCost, 0.50},
		{"7100", model.TypeMemorandumOrder, 0.40},
		{"9100", model.TypeMemorandumOrder, 0.40},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			res := c.Classify(tt.code, "zzz", nil)
			assert.Equal(t, tt.wantType, res.Type)
			assert.InDelta(t, tt.confidence, res.Confidence, 0.001)
		})
	}
}

func TestClassify_AbsoluteFallback(t *testing.T) {
	c := newTestClassifier(t)

	res := c.Classify("", "zzz", nil)
	assert.Equal(t, model.TypeAsset, res.Type)
	assert.InDelta(t, 0.50, res.Confidence, 0.001)
}

func TestClassifyRootNameOnly_IgnoresRules(t *testing.T) {
	c := newTestClassifier(t)

	// Root-name-only derivation must not be influenced by existing rules,
	// and must always produce a concrete type.
	res := c.ClassifyRootNameOnly("GASTOS")
	assert.Equal(t, model.TypeExpense, res.Type)

	res = c.ClassifyRootNameOnly("PATRIMONIO")
	assert.Equal(t, model.TypeEquity, res.Type)

	res = c.ClassifyRootNameOnly("???")
	assert.Equal(t, model.TypeAsset, res.Type)
}

func TestLoadVocabulary_RejectsBadRows(t *testing.T) {
	_, err := LoadVocabulary(strings.NewReader("keyword,type,confidence\ncaja,NotAType,0.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown account type")

	_, err = LoadVocabulary(strings.NewReader("keyword,type,confidence\ncaja,Asset,1.5\n"))
	require.Error(t, err)

	_, err = LoadVocabulary(strings.NewReader("keyword,type,confidence\n,Asset,0.5\n"))
	require.Error(t, err)
}

func TestDefaultVocabulary_IsOrderedMostSpecificFirst(t *testing.T) {
	vocab := DefaultVocabulary()
	require.NotEmpty(t, vocab)

	// Confidence never rises as tiers get less specific.
	prev := 1.0
	for _, rule := range vocab {
		assert.LessOrEqual(t, rule.Confidence, prev+0.001, "rule %q", rule.Keyword)
		if rule.Confidence < prev {
			prev = rule.Confidence
		}
	}
}
