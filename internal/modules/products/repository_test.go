package products

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/gralix-technologies/loanlens/internal/domain"
)

func setupProductDB(t *testing.T) *Repository {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT,
			created_at INTEGER
		)
	`)
	require.NoError(t, err)

	return NewRepository(db, zerolog.Nop())
}

func TestRepository_CreateAndGetByID(t *testing.T) {
	repo := setupProductDB(t)

	p := &domain.Product{Name: "Micro Loans", Description: "Small ticket lending"}
	require.NoError(t, repo.Create(p))
	assert.NotZero(t, p.ID)

	found, err := repo.GetByID(p.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Micro Loans", found.Name)
	assert.Equal(t, "Small ticket lending", found.Description)
	assert.Equal(t, p.CreatedAt.Unix(), found.CreatedAt.Unix())
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo := setupProductDB(t)

	found, err := repo.GetByID(42)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepository_NamesByID(t *testing.T) {
	repo := setupProductDB(t)

	micro := &domain.Product{Name: "Micro Loans"}
	sme := &domain.Product{Name: "SME Loans"}
	require.NoError(t, repo.Create(micro))
	require.NoError(t, repo.Create(sme))

	names, err := repo.NamesByID([]int64{micro.ID, sme.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{
		micro.ID: "Micro Loans",
		sme.ID:   "SME Loans",
	}, names)

	names, err = repo.NamesByID(nil)
	require.NoError(t, err)
	assert.Empty(t, names)
}
