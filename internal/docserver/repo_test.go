package docserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/libractl/internal/remote"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return NewRepository(db, nil)
}

func TestRepository_PutBumpsVersion(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	d1, err := repo.Put(ctx, "books", "book-1", json.RawMessage(`{"title":"Dune"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), d1.Version)

	d2, err := repo.Put(ctx, "books", "book-1", json.RawMessage(`{"title":"Dune Messiah"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), d2.Version)

	got, err := repo.Get(ctx, "books", "book-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Dune Messiah"}`, string(got.Data))
}

func TestRepository_CreateAssignsID(t *testing.T) {
	repo := setupTestRepo(t)
	doc, err := repo.Create(context.Background(), "borrowingRecords", json.RawMessage(`{"status":"borrowed"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, int64(1), doc.Version)
}

func TestRepository_ListKeepsInsertionOrder(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		_, err := repo.Put(ctx, "branches", id, json.RawMessage(`{}`))
		require.NoError(t, err)
	}
	_, err := repo.Put(ctx, "books", "other", json.RawMessage(`{}`))
	require.NoError(t, err)

	docs, err := repo.List(ctx, "branches")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c", docs[0].ID)
	assert.Equal(t, "a", docs[1].ID)
	assert.Equal(t, "b", docs[2].ID)
}

func TestRepository_ConditionalUpdate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	_, err := repo.Put(ctx, "books", "book-1", json.RawMessage(`{"availableCopies":1}`))
	require.NoError(t, err)

	updated, err := repo.Update(ctx, "books", "book-1", json.RawMessage(`{"availableCopies":0}`), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	_, err = repo.Update(ctx, "books", "book-1", json.RawMessage(`{"availableCopies":0}`), 1)
	assert.ErrorIs(t, err, remote.ErrConflict)

	_, err = repo.Update(ctx, "books", "missing", json.RawMessage(`{}`), 0)
	assert.ErrorIs(t, err, remote.ErrNotFound)

	// Unconditional update ignores the stored version.
	updated, err = repo.Update(ctx, "books", "book-1", json.RawMessage(`{"availableCopies":3}`), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Version)
}

func TestRepository_Delete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	_, err := repo.Put(ctx, "users", "user-1", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "users", "user-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "users", "user-1"), remote.ErrNotFound)

	_, err = repo.Get(ctx, "users", "user-1")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}
