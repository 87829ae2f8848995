package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// GlobalOwner is the owner key of shared profile templates; company-specific
// profiles use the company id.
const GlobalOwner = "global"

// ActiveProfileName is the per-company slot a successful import writes its
// resolved profile to; scheduled heal runs read it back.
const ActiveProfileName = "active"

// NamedProfile is a stored structure profile with its display name.
type NamedProfile struct {
	ID        uuid.UUID              `json:"id"`
	Owner     string                 `json:"owner"`
	Name      string                 `json:"name"`
	Profile   model.StructureProfile `json:"profile"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ProfileRepository is the named-profile store: create/list/load/delete keyed
// by an owner (company id or GlobalOwner) and a display name.
type ProfileRepository interface {
	Save(ctx context.Context, owner, name string, profile model.StructureProfile) (*NamedProfile, error)
	List(ctx context.Context, owner string) ([]NamedProfile, error)
	Load(ctx context.Context, owner, name string) (*NamedProfile, error)
	Delete(ctx context.Context, owner, name string) error
}

// PostgresProfileRepository stores profiles as JSONB rows.
type PostgresProfileRepository struct {
	db DB
}

// NewPostgresProfileRepository creates a profile repository over db.
func NewPostgresProfileRepository(db DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

func (r *PostgresProfileRepository) Save(ctx context.Context, owner, name string, profile model.StructureProfile) (*NamedProfile, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to save invalid profile: %w", err)
	}
	payload, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		INSERT INTO coa_structure_profiles (owner, name, profile)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner, name) DO UPDATE SET
			profile = EXCLUDED.profile,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	stored := NamedProfile{Owner: owner, Name: name, Profile: profile}
	err = r.db.QueryRow(ctx, query, owner, name, payload).
		Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile %q: %w", name, err)
	}
	return &stored, nil
}

func (r *PostgresProfileRepository) List(ctx context.Context, owner string) ([]NamedProfile, error) {
	query := `
		SELECT id, owner, name, profile, created_at, updated_at
		FROM coa_structure_profiles
		WHERE owner = $1
		ORDER BY name`

	rows, err := r.db.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []NamedProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return profiles, nil
}

func (r *PostgresProfileRepository) Load(ctx context.Context, owner, name string) (*NamedProfile, error) {
	query := `
		SELECT id, owner, name, profile, created_at, updated_at
		FROM coa_structure_profiles
		WHERE owner = $1 AND name = $2`

	p, err := scanProfile(r.db.QueryRow(ctx, query, owner, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %q for %s: %w", name, owner, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresProfileRepository) Delete(ctx context.Context, owner, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM coa_structure_profiles WHERE owner = $1 AND name = $2`, owner, name)
	if err != nil {
		return fmt.Errorf("failed to delete profile %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %q for %s: %w", name, owner, ErrNotFound)
	}
	return nil
}

func scanProfile(row pgx.Row) (*NamedProfile, error) {
	var (
		p       NamedProfile
		payload []byte
	)
	if err := row.Scan(&p.ID, &p.Owner, &p.Name, &payload, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	if err := json.Unmarshal(payload, &p.Profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile %q: %w", p.Name, err)
	}
	return &p, nil
}

// MemoryProfileRepository keeps profiles in memory; used by the CLI when no
// database is configured and by tests.
type MemoryProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]NamedProfile
}

// NewMemoryProfileRepository creates an empty in-memory repository.
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{profiles: make(map[string]NamedProfile)}
}

func memKey(owner, name string) string { return owner + "\x00" + name }

func (r *MemoryProfileRepository) Save(_ context.Context, owner, name string, profile model.StructureProfile) (*NamedProfile, error) {
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to save invalid profile: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	stored, ok := r.profiles[memKey(owner, name)]
	if !ok {
		stored = NamedProfile{ID: uuid.New(), Owner: owner, Name: name, CreatedAt: now}
	}
	stored.Profile = profile.Clone()
	stored.UpdatedAt = now
	r.profiles[memKey(owner, name)] = stored
	return &stored, nil
}

func (r *MemoryProfileRepository) List(_ context.Context, owner string) ([]NamedProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []NamedProfile
	for _, p := range r.profiles {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryProfileRepository) Load(_ context.Context, owner, name string) (*NamedProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[memKey(owner, name)]
	if !ok {
		return nil, fmt.Errorf("profile %q for %s: %w", name, owner, ErrNotFound)
	}
	return &p, nil
}

func (r *MemoryProfileRepository) Delete(_ context.Context, owner, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[memKey(owner, name)]; !ok {
		return fmt.Errorf("profile %q for %s: %w", name, owner, ErrNotFound)
	}
	delete(r.profiles, memKey(owner, name))
	return nil
}
