package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

func TestPostgresProfileSave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(`INSERT INTO coa_structure_profiles`).
		WithArgs(GlobalOwner, "puct", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(id, now, now))

	repo := NewPostgresProfileRepository(mock)
	stored, err := repo.Save(context.Background(), GlobalOwner, "puct", model.PUCTProfile())
	require.NoError(t, err)
	assert.Equal(t, id, stored.ID)
	assert.Equal(t, model.PUCTProfile(), stored.Profile)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProfileSaveRejectsInvalidProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresProfileRepository(mock)
	_, err = repo.Save(context.Background(), GlobalOwner, "broken", model.StructureProfile{})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "invalid profiles never reach the database")
}

func TestPostgresProfileLoadNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, owner, name, profile`).
		WithArgs("co-1", "missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresProfileRepository(mock)
	_, err = repo.Load(context.Background(), "co-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresProfileDeleteNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM coa_structure_profiles`).
		WithArgs("co-1", "missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	repo := NewPostgresProfileRepository(mock)
	assert.ErrorIs(t, repo.Delete(context.Background(), "co-1", "missing"), ErrNotFound)
}

func TestMemoryProfileRepositoryRoundTrip(t *testing.T) {
	repo := NewMemoryProfileRepository()
	ctx := context.Background()

	_, err := repo.Save(ctx, GlobalOwner, "puct", model.PUCTProfile())
	require.NoError(t, err)
	_, err = repo.Save(ctx, GlobalOwner, "dash", model.DashProfile())
	require.NoError(t, err)
	_, err = repo.Save(ctx, "co-1", "custom", model.DefaultProfile())
	require.NoError(t, err)

	global, err := repo.List(ctx, GlobalOwner)
	require.NoError(t, err)
	require.Len(t, global, 2)
	assert.Equal(t, "dash", global[0].Name)
	assert.Equal(t, "puct", global[1].Name)

	loaded, err := repo.Load(ctx, GlobalOwner, "puct")
	require.NoError(t, err)
	assert.Equal(t, model.PUCTProfile(), loaded.Profile)

	require.NoError(t, repo.Delete(ctx, GlobalOwner, "puct"))
	_, err = repo.Load(ctx, GlobalOwner, "puct")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, GlobalOwner, "puct"), ErrNotFound)
}

func TestMemoryProfileRepositoryCopiesProfiles(t *testing.T) {
	repo := NewMemoryProfileRepository()
	ctx := context.Background()

	profile := model.PUCTProfile()
	_, err := repo.Save(ctx, GlobalOwner, "puct", profile)
	require.NoError(t, err)

	// Mutating the caller's copy must not leak into the stored one.
	profile.LevelLengths[0] = 99
	loaded, err := repo.Load(ctx, GlobalOwner, "puct")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Profile.LevelLengths[0])
}
