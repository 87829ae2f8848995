// Package model defines the core data structures shared by the chart-of-accounts
// engine: the numbering-convention profile, raw input rows, working account
// records and group rules.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountType is the closed set of business account types.
type AccountType string

const (
	TypeAsset           AccountType = "Asset"
	TypeLiability       AccountType = "Liability"
	TypeEquity          AccountType = "Equity"
	TypeContraRegulator AccountType = "ContraRegulatory"
	TypeMemorandumOrder AccountType = "MemorandumOrder"
	TypeContingent      AccountType = "Contingent"
	TypeCost            AccountType = "Cost"
	TypeExpense         AccountType = "Expense"
	TypeIncome          AccountType = "Income"
	TypeResult          AccountType = "Result"
	TypeOtherResult     AccountType = "OtherResult"
)

// AccountTypes lists all valid account types in display order.
var AccountTypes = []AccountType{
	TypeAsset, TypeLiability, TypeEquity, TypeContraRegulator,
	TypeMemorandumOrder, TypeContingent, TypeCost, TypeExpense,
	TypeIncome, TypeResult, TypeOtherResult,
}

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	for _, known := range AccountTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RawRow is a single row extracted from a spreadsheet or PDF, before any
// interpretation. Produced by an external row source; immutable.
type RawRow struct {
	SourceIndex int      `json:"source_index"`
	Cells       []string `json:"cells"`
}

// Cell returns the trimmed cell at index i, or "" when out of range.
func (r RawRow) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[i])
}

// ColumnMapping describes where code, name and (optionally) type live in a raw
// row. In multi-column-code mode, CodeColumns are merged left-to-right with
// per-segment zero-padding before any other processing.
type ColumnMapping struct {
	CodeColumn  int   `json:"code_column"`
	NameColumn  int   `json:"name_column"`
	TypeColumn  int   `json:"type_column"` // -1 when absent
	CodeColumns []int `json:"code_columns,omitempty"`
}

// GroupRule maps a code prefix (typically the first digit) to an account type.
// Rules are matched by longest prefix; at most one rule applies to a code.
type GroupRule struct {
	Prefix string      `json:"prefix"`
	Type   AccountType `json:"type"`
}

// MatchGroupRule returns the longest-prefix rule matching code, or nil.
func MatchGroupRule(code string, rules []GroupRule) *GroupRule {
	var best *GroupRule
	for i := range rules {
		r := &rules[i]
		if strings.HasPrefix(code, r.Prefix) {
			if best == nil || len(r.Prefix) > len(best.Prefix) {
				best = r
			}
		}
	}
	return best
}

// Account is the working record produced by the import pipeline and re-loaded
// by the hierarchy builder. ParentCode is nil exactly when Level == 1.
type Account struct {
	ID          uuid.UUID   `json:"id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Type        AccountType `json:"type"`
	Confidence  float64     `json:"confidence"`
	Level       int         `json:"level"`
	ParentCode  *string     `json:"parent_code"`
	IsDuplicate bool        `json:"is_duplicate"`
}

// ParentUpdate is a single hierarchy repair emitted by the builder; applied as
// an independent per-row update by the persistence layer.
type ParentUpdate struct {
	ID         uuid.UUID `json:"id"`
	ParentCode *string   `json:"parent_code"`
}

// StructureProfile is the numbering-convention configuration of a chart of
// accounts. Pure data; level/parent math lives in the hierarchy package.
type StructureProfile struct {
	// SeparatorMode is true when levels are delimited by a literal character,
	// false when levels are fixed cumulative digit lengths.
	SeparatorMode bool `json:"separator_mode"`
	// Separator is only meaningful in separator mode.
	Separator string `json:"separator,omitempty"`
	// SmartZeroCheck ignores trailing all-zero segments when computing level,
	// so "1.00.00" reports level 1 rather than 3 and the padded "100000000"
	// reports level 1 under the five-segment profile.
	SmartZeroCheck bool `json:"smart_zero_check"`
	LevelCount     int  `json:"level_count"`
	// LevelLengths holds cumulative digit counts through each level. In
	// separator mode they only validate or guess segment widths.
	LevelLengths []int `json:"level_lengths"`
	// LevelIncrements are expected step sizes per level, used for heuristic
	// suggestions only.
	LevelIncrements []int `json:"level_increments,omitempty"`
}

var (
	ErrProfileNoLevels      = errors.New("profile must declare at least one level")
	ErrProfileLengthCount   = errors.New("level_lengths must have level_count entries")
	ErrProfileNotIncreasing = errors.New("level_lengths must be strictly increasing")
	ErrProfileNoSeparator   = errors.New("separator mode requires a separator character")
)

// Validate checks the profile invariants.
func (p StructureProfile) Validate() error {
	if p.LevelCount < 1 {
		return ErrProfileNoLevels
	}
	if len(p.LevelLengths) != p.LevelCount {
		return fmt.Errorf("%w: have %d lengths for %d levels", ErrProfileLengthCount, len(p.LevelLengths), p.LevelCount)
	}
	for i := 1; i < len(p.LevelLengths); i++ {
		if p.LevelLengths[i] <= p.LevelLengths[i-1] {
			return fmt.Errorf("%w: %v", ErrProfileNotIncreasing, p.LevelLengths)
		}
	}
	if p.SeparatorMode && p.Separator == "" {
		return ErrProfileNoSeparator
	}
	return nil
}

// Clone returns a deep copy so callers can mutate levels without aliasing.
func (p StructureProfile) Clone() StructureProfile {
	out := p
	out.LevelLengths = append([]int(nil), p.LevelLengths...)
	out.LevelIncrements = append([]int(nil), p.LevelIncrements...)
	return out
}

// DefaultProfile is the single-level fallback used when no dialect is detected
// and the caller supplies nothing better.
func DefaultProfile() StructureProfile {
	return StructureProfile{
		SeparatorMode: false,
		LevelCount:    1,
		LevelLengths:  []int{1},
	}
}

// PUCTProfile is the 5-segment 9-digit dialect (class, group, subgroup, item,
// sub-item flattened to cumulative lengths 1,2,3,6,9). SmartZeroCheck is on:
// codes are canonically padded to the full width, so the root of class 1 is
// stored as "100000000" and the trailing zero segments must not count as
// depth.
func PUCTProfile() StructureProfile {
	return StructureProfile{
		SeparatorMode:  false,
		SmartZeroCheck: true,
		LevelCount:     5,
		LevelLengths:   []int{1, 2, 3, 6, 9},
	}
}

// DashProfile is the 3-level dash-segmented dialect ("100-00-00"); lengths are
// cumulative digit counts excluding dashes.
func DashProfile() StructureProfile {
	return StructureProfile{
		SeparatorMode: true,
		Separator:     "-",
		LevelCount:    3,
		LevelLengths:  []int{3, 5, 7},
	}
}
