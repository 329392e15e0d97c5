package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/libractl/internal/remote"
)

func TestMemory_CreateListOrder(t *testing.T) {
	ctx := context.Background()
	m := remote.NewMemory()

	a, err := m.Create(ctx, remote.Books, json.RawMessage(`{"title":"A"}`))
	require.NoError(t, err)
	b, err := m.Create(ctx, remote.Books, json.RawMessage(`{"title":"B"}`))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(1), a.Version)

	docs, err := m.List(ctx, remote.Books)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, a.ID, docs[0].ID)
	assert.Equal(t, b.ID, docs[1].ID)
}

func TestMemory_UpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	m := remote.NewMemory()
	d, err := m.Put(ctx, remote.Books, "book-1", json.RawMessage(`{"availableCopies":1}`))
	require.NoError(t, err)

	d2, err := m.Update(ctx, remote.Books, "book-1", json.RawMessage(`{"availableCopies":0}`), d.Version)
	require.NoError(t, err)
	assert.Equal(t, int64(2), d2.Version)

	_, err = m.Update(ctx, remote.Books, "book-1", json.RawMessage(`{"availableCopies":0}`), d.Version)
	assert.ErrorIs(t, err, remote.ErrConflict)

	_, err = m.Update(ctx, remote.Books, "missing", json.RawMessage(`{}`), 0)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestMemory_DeleteAndFail(t *testing.T) {
	ctx := context.Background()
	m := remote.NewMemory()
	_, err := m.Put(ctx, remote.Staff, "uid-1", json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, remote.Staff, "uid-1"))
	assert.ErrorIs(t, m.Delete(ctx, remote.Staff, "uid-1"), remote.ErrNotFound)

	boom := errors.New("boom")
	m.Fail = func(op, collection string) error {
		if op == "list" {
			return boom
		}
		return nil
	}
	_, err = m.List(ctx, remote.Staff)
	assert.ErrorIs(t, err, boom)
}

func TestDisabled(t *testing.T) {
	var s remote.Store = remote.Disabled{}
	_, err := s.List(context.Background(), remote.Books)
	assert.ErrorIs(t, err, remote.ErrUnavailable)
	assert.True(t, remote.IsDisabled(s))
	assert.False(t, remote.IsDisabled(remote.NewMemory()))
}
