// Package store persists committed accounts and named structure profiles in
// PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// DB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AccountStore persists committed accounts.
type AccountStore struct {
	db     DB
	logger *slog.Logger
}

// NewAccountStore creates an account store.
func NewAccountStore(db DB, logger *slog.Logger) *AccountStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountStore{db: db, logger: logger}
}

// BulkInsertAccounts persists one commit chunk inside a transaction, so a
// chunk lands entirely or not at all. Duplicate codes are legal rows, so
// there is no uniqueness conflict handling on code.
func (s *AccountStore) BulkInsertAccounts(ctx context.Context, companyID string, accounts []model.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO coa_accounts (id, company_id, code, name, type, confidence, level, parent_code, is_duplicate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, acc := range accounts {
		if acc.ID == uuid.Nil {
			acc.ID = uuid.New()
		}
		if _, err := tx.Exec(ctx, query,
			acc.ID,
			companyID,
			acc.Code,
			acc.Name,
			acc.Type,
			acc.Confidence,
			acc.Level,
			acc.ParentCode,
			acc.IsDuplicate,
		); err != nil {
			return fmt.Errorf("failed to insert account %s: %w", acc.Code, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk: %w", err)
	}
	return nil
}

// LoadAccounts returns every account of a company in insertion order, the
// input the hierarchy builder heals against.
func (s *AccountStore) LoadAccounts(ctx context.Context, companyID string) ([]model.Account, error) {
	query := `
		SELECT id, code, name, type, confidence, level, parent_code, is_duplicate
		FROM coa_accounts
		WHERE company_id = $1
		ORDER BY created_at, code`

	rows, err := s.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var acc model.Account
		if err := rows.Scan(
			&acc.ID,
			&acc.Code,
			&acc.Name,
			&acc.Type,
			&acc.Confidence,
			&acc.Level,
			&acc.ParentCode,
			&acc.IsDuplicate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	return accounts, nil
}

// ListCompanyIDs returns every company that has accounts stored.
func (s *AccountStore) ListCompanyIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT company_id FROM coa_accounts ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read companies: %w", err)
	}
	return ids, nil
}

// ApplyParentUpdates applies hierarchy repairs as independent per-row
// updates. A failed row is logged and skipped; the remaining updates still
// run, mirroring the repair endpoint contract.
func (s *AccountStore) ApplyParentUpdates(ctx context.Context, companyID string, updates []model.ParentUpdate) (int, error) {
	query := `
		UPDATE coa_accounts
		SET parent_code = $1, updated_at = now()
		WHERE id = $2 AND company_id = $3`

	applied := 0
	for _, u := range updates {
		tag, err := s.db.Exec(ctx, query, u.ParentCode, u.ID, companyID)
		if err != nil {
			s.logger.Warn("parent update failed",
				slog.String("account_id", u.ID.String()),
				slog.Any("error", err),
			)
			continue
		}
		if tag.RowsAffected() > 0 {
			applied++
		}
	}
	return applied, nil
}

// DeleteAccounts removes a company's accounts, used before a clean re-import.
func (s *AccountStore) DeleteAccounts(ctx context.Context, companyID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM coa_accounts WHERE company_id = $1`, companyID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete accounts: %w", err)
	}
	return tag.RowsAffected(), nil
}
