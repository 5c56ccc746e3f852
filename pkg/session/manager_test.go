package session_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"accesos/pkg/session"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLSessionRepo(t *testing.T) {
	ctx := context.Background()
	repo := session.NewSQLSessionRepo(setupTestDB(t))
	require.NoError(t, repo.Migrate(ctx))

	ok, err := repo.IsValid(ctx, "s1")
	assert.NoError(t, err)
	assert.False(t, ok, "no session yet")

	id, err := repo.Create(ctx, 1, "s1", time.Now().Add(time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, "s1", id)

	ok, err = repo.IsValid(ctx, "s1")
	assert.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.Create(ctx, 1, "s1", time.Now().Add(time.Hour))
	assert.Error(t, err, "duplicate session id")

	_, err = repo.Create(ctx, 2, "s2", time.Now().Add(-time.Minute))
	assert.NoError(t, err)
	ok, err = repo.IsValid(ctx, "s2")
	assert.NoError(t, err)
	assert.False(t, ok, "expired session")

	assert.NoError(t, repo.Invalidate(ctx, "s1"))
	ok, err = repo.IsValid(ctx, "s1")
	assert.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, repo.Invalidate(ctx, "missing"))
}

func TestSQLSessionRepoRevokesOnlyOneSession(t *testing.T) {
	ctx := context.Background()
	repo := session.NewSQLSessionRepo(setupTestDB(t))
	require.NoError(t, repo.Migrate(ctx))

	exp := time.Now().Add(time.Hour)
	_, err := repo.Create(ctx, 1, "first", exp)
	require.NoError(t, err)
	require.NoError(t, repo.Invalidate(ctx, "first"))

	// a new login of the same user must not bring the old session back
	_, err = repo.Create(ctx, 1, "second", exp)
	require.NoError(t, err)

	ok, err := repo.IsValid(ctx, "first")
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.IsValid(ctx, "second")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLSessionRepoWithoutTable(t *testing.T) {
	repo := session.NewSQLSessionRepo(setupTestDB(t))

	_, err := repo.IsValid(context.Background(), "s1")
	assert.Error(t, err)
}
