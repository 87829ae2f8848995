package hierarchy

import (
	"log/slog"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// Builder recomputes parent codes for persisted account sets and emits the
// updates needed to bring them in line with the active profile.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a hierarchy builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Heal recomputes the parent code of every account under profile and returns
// an update for each account whose stored parent differs. Accounts are never
// mutated and their order is preserved; applying all emitted updates and
// calling Heal again yields an empty result.
func (b *Builder) Heal(accounts []model.Account, profile model.StructureProfile) []model.ParentUpdate {
	var updates []model.ParentUpdate
	for i := range accounts {
		acc := &accounts[i]
		want := Parent(acc.Code, profile)
		if parentEqual(acc.ParentCode, want) {
			continue
		}
		updates = append(updates, model.ParentUpdate{ID: acc.ID, ParentCode: want})
	}
	if len(updates) > 0 {
		b.logger.Info("hierarchy drift detected",
			slog.Int("accounts", len(accounts)),
			slog.Int("updates", len(updates)),
		)
	}
	return updates
}

func parentEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
