package database

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	return db
}

func countItems(t *testing.T, db *sql.DB) int {
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
	return n
}

func TestWithTransaction_Commits(t *testing.T) {
	db := openTestDB(t)

	err := WithTransaction(db, func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO items (name) VALUES ('a')")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countItems(t, db))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)

	boom := errors.New("boom")
	err := WithTransaction(db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO items (name) VALUES ('a')"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countItems(t, db))
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db := openTestDB(t)

	err := WithTransaction(db, func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO items (name) VALUES ('a')")
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")
	assert.Zero(t, countItems(t, db))
}

func TestBuildConnectionString(t *testing.T) {
	standard := buildConnectionString("/tmp/portfolio.db", ProfileStandard)
	assert.Contains(t, standard, "/tmp/portfolio.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, standard, "_pragma=synchronous(NORMAL)")

	cache := buildConnectionString("/tmp/cache.db", ProfileCache)
	assert.Contains(t, cache, "_pragma=synchronous(OFF)")
	assert.Contains(t, cache, "_pragma=auto_vacuum(FULL)")
}
