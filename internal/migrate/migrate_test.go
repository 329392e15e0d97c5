package migrate_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/metadata"
	"github.com/blackwell-systems/libractl/internal/migrate"
	"github.com/blackwell-systems/libractl/internal/remote"
	"github.com/blackwell-systems/libractl/internal/seed"
)

func seeded(t *testing.T) *localstore.MemStore {
	t.Helper()
	kv := localstore.NewMemStore()
	_, err := seed.New(kv, nil, metadata.None{}, nil).Initialize(context.Background())
	require.NoError(t, err)
	return kv
}

func openLedger(t *testing.T) *migrate.Ledger {
	t.Helper()
	l, err := migrate.OpenLedger(migrate.DefaultLedgerPath(filepath.Join(t.TempDir(), "data")))
	require.NoError(t, err)
	return l
}

func count(t *testing.T, store *remote.Memory, coll string) int {
	t.Helper()
	docs, err := store.List(context.Background(), coll)
	require.NoError(t, err)
	return len(docs)
}

func TestLedger_AppendContains(t *testing.T) {
	l := openLedger(t)
	ok, err := l.Contains(remote.Books, "book-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Append(migrate.LedgerEntry{Collection: remote.Books, Key: "book-1", DocID: "doc-1"}))
	ok, err = l.Contains(remote.Books, "book-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Contains(remote.Users, "book-1")
	require.NoError(t, err)
	assert.False(t, ok, "keys are scoped by collection")

	entries, err := l.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestRun_PushesEverything(t *testing.T) {
	ctx := context.Background()
	kv := seeded(t)
	store := remote.NewMemory()
	ledger := openLedger(t)

	rep, err := migrate.New(kv, store, ledger, nil).Run(ctx, migrate.Options{})
	require.NoError(t, err)
	assert.Empty(t, rep.Failed)
	// 3 accounts + 3 branches + 1 book + settings
	assert.Len(t, rep.Pushed, 8)

	assert.Equal(t, 1, count(t, store, remote.Staff))
	assert.Equal(t, 2, count(t, store, remote.Users))
	assert.Equal(t, 3, count(t, store, remote.Branches))
	assert.Equal(t, 1, count(t, store, remote.Books))
	_, err = store.Get(ctx, remote.Settings, remote.SettingsDoc)
	assert.NoError(t, err)

	books, err := localstore.ReadCollection[catalog.Book](ctx, kv, localstore.KeyBooks)
	require.NoError(t, err)
	assert.NotEmpty(t, books[0].RemoteID, "assigned document id is written back")

	again, err := migrate.New(kv, store, ledger, nil).Run(ctx, migrate.Options{})
	require.NoError(t, err)
	assert.Empty(t, again.Pushed)
	assert.Equal(t, 8, again.Skipped)
	assert.Equal(t, 1, count(t, store, remote.Books), "second run does not duplicate")
}

func TestRun_FailuresDoNotStopTheRun(t *testing.T) {
	ctx := context.Background()
	kv := seeded(t)
	store := remote.NewMemory()
	store.Fail = func(op, collection string) error {
		if collection == remote.Branches {
			return remote.ErrUnavailable
		}
		return nil
	}

	rep, err := migrate.New(kv, store, openLedger(t), nil).Run(ctx, migrate.Options{})
	require.NoError(t, err)
	require.Len(t, rep.Failed, 3)
	assert.True(t, errors.Is(rep.Failed[0].Err, remote.ErrUnavailable))
	assert.Equal(t, remote.Branches, rep.Failed[0].Collection)
	assert.Len(t, rep.Pushed, 5)
}

func TestRun_DryRunAndLimit(t *testing.T) {
	ctx := context.Background()
	kv := seeded(t)
	store := remote.NewMemory()
	ledger := openLedger(t)

	rep, err := migrate.New(kv, store, ledger, nil).Run(ctx, migrate.Options{DryRun: true})
	require.NoError(t, err)
	assert.Len(t, rep.Pushed, 8)
	assert.Zero(t, count(t, store, remote.Books))
	entries, err := ledger.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	rep, err = migrate.New(kv, store, ledger, nil).Run(ctx, migrate.Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rep.Pushed, 2)
	assert.Equal(t, 2, count(t, store, remote.Staff)+count(t, store, remote.Users))
}

func TestRun_NeedsRemote(t *testing.T) {
	_, err := migrate.New(seeded(t), remote.Disabled{}, openLedger(t), nil).Run(context.Background(), migrate.Options{})
	assert.ErrorIs(t, err, migrate.ErrNoRemote)
}
