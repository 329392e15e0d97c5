package reconcile_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/reconcile"
	"github.com/blackwell-systems/libractl/internal/remote"
)

func bookIDs(books []catalog.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func TestMerge_RemoteWinsAndOrder(t *testing.T) {
	remoteBooks := []catalog.Book{
		{ID: "b2", Title: "remote b2"},
		{ID: "b1", Title: "remote b1"},
	}
	localBooks := []catalog.Book{
		{ID: "b1", Title: "local b1"},
		{ID: "b3", Title: "local b3"},
		{ID: "b4", Title: "local b4"},
	}
	got := reconcile.Merge(remoteBooks, localBooks)
	assert.Equal(t, []string{"b2", "b1", "b3", "b4"}, bookIDs(got))
	assert.Equal(t, "remote b1", got[1].Title)
}

func TestMerge_EmptyKeysKept(t *testing.T) {
	got := reconcile.Merge(
		[]catalog.Book{{Title: "no id"}},
		[]catalog.Book{{Title: "also no id"}, {ID: "b1"}},
	)
	assert.Len(t, got, 3)
}

func TestMerge_AccountsByEmail(t *testing.T) {
	got := reconcile.Merge(
		[]accounts.Account{{ID: "uid-9", Email: "Sarah@Example.com", Name: "remote"}},
		[]accounts.Account{{ID: "user-2", Email: "sarah@example.com ", Name: "local"}},
	)
	require.Len(t, got, 1)
	assert.Equal(t, "remote", got[0].Name)
}

func TestMerge_Nil(t *testing.T) {
	got := reconcile.Merge[catalog.Book](nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMergeFunc_PreferLocal(t *testing.T) {
	newer := func(theirs, ours catalog.Book) bool { return ours.UpdatedAt > theirs.UpdatedAt }
	got, kept := reconcile.MergeFunc(
		[]catalog.Book{
			{ID: "b1", Title: "remote b1", RemoteID: "doc-1", Version: 4, UpdatedAt: "2025-03-01"},
			{ID: "b2", Title: "remote b2", UpdatedAt: "2025-03-09"},
		},
		[]catalog.Book{
			{ID: "b1", Title: "local b1", RemoteID: "doc-1", Version: 2, UpdatedAt: "2025-03-05"},
			{ID: "b2", Title: "local b2", UpdatedAt: "2025-03-02"},
		},
		newer,
	)
	require.Len(t, got, 2)
	assert.Equal(t, "local b1", got[0].Title)
	assert.Equal(t, int64(4), got[0].Version)
	assert.Equal(t, "remote b2", got[1].Title)
	require.Len(t, kept, 1)
	assert.Equal(t, "b1", kept[0].ID)

	_, kept = reconcile.MergeFunc(got, got, nil)
	assert.Empty(t, kept)
}

func TestUpsertWithout(t *testing.T) {
	books := []catalog.Book{{ID: "a"}, {ID: "b"}}
	books = reconcile.Upsert(books, catalog.Book{ID: "a", Title: "new"})
	assert.Equal(t, "new", books[0].Title)
	books = reconcile.Upsert(books, catalog.Book{ID: "c"})
	assert.Len(t, books, 3)

	books, found := reconcile.Without(books, "b")
	assert.True(t, found)
	assert.Equal(t, []string{"a", "c"}, bookIDs(books))
	_, found = reconcile.Without(books, "zzz")
	assert.False(t, found)
}

type CollectionSuite struct {
	suite.Suite
	ctx   context.Context
	kv    *localstore.MemStore
	store *remote.Memory
	books *reconcile.Collection[catalog.Book]
	users *reconcile.Collection[accounts.Account]
}

func (s *CollectionSuite) SetupTest() {
	s.ctx = context.Background()
	s.kv = localstore.NewMemStore()
	s.store = remote.NewMemory()
	s.books = reconcile.NewCollection(s.kv, s.store, reconcile.Options[catalog.Book]{
		LocalKey: localstore.KeyBooks,
		Remote:   []string{remote.Books},
	}, nil)
	s.users = reconcile.NewCollection(s.kv, s.store, reconcile.Options[accounts.Account]{
		LocalKey: localstore.KeyUsers,
		Remote:   []string{remote.Users, remote.Staff},
		Route:    accounts.Collection,
		Tag:      accounts.TagRole,
		DocKey:   func(a accounts.Account) string { return a.ID },
	}, nil)
}

func TestCollectionSuite(t *testing.T) {
	suite.Run(t, new(CollectionSuite))
}

func (s *CollectionSuite) putRemote(coll, id string, v interface{}) {
	data, err := json.Marshal(v)
	s.Require().NoError(err)
	_, err = s.store.Put(s.ctx, coll, id, data)
	s.Require().NoError(err)
}

func (s *CollectionSuite) TestLoad_MergesAndWritesBack() {
	s.Require().NoError(s.books.WriteLocal(s.ctx, []catalog.Book{{ID: "b1", Title: "local"}, {ID: "b2"}}))
	s.putRemote(remote.Books, "doc-1", catalog.Book{ID: "b1", Title: "remote"})

	res, err := s.books.Load(s.ctx)
	s.Require().NoError(err)
	s.NoError(res.RemoteErr)
	s.Equal([]string{"b1", "b2"}, bookIDs(res.Records))
	s.Equal("remote", res.Records[0].Title)
	s.Equal("doc-1", res.Records[0].RemoteID)
	s.Equal(int64(1), res.Records[0].Version)

	local, err := s.books.Local(s.ctx)
	s.Require().NoError(err)
	s.Equal(res.Records, local)
}

func (s *CollectionSuite) TestLoad_Idempotent() {
	s.Require().NoError(s.books.WriteLocal(s.ctx, []catalog.Book{{ID: "b3"}, {ID: "b1"}}))
	s.putRemote(remote.Books, "doc-1", catalog.Book{ID: "b1"})
	s.putRemote(remote.Books, "doc-2", catalog.Book{ID: "b2"})

	first, err := s.books.Load(s.ctx)
	s.Require().NoError(err)
	second, err := s.books.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal(first.Records, second.Records)
}

func (s *CollectionSuite) TestLoad_RemoteFailureFallsBackToLocal() {
	s.Require().NoError(s.books.WriteLocal(s.ctx, []catalog.Book{{ID: "b1"}}))
	s.putRemote(remote.Books, "doc-9", catalog.Book{ID: "b9"})
	s.store.Fail = func(op, _ string) error {
		if op == "list" {
			return remote.ErrUnavailable
		}
		return nil
	}

	res, err := s.books.Load(s.ctx)
	s.Require().NoError(err)
	s.ErrorIs(res.RemoteErr, remote.ErrUnavailable)
	s.Equal([]string{"b1"}, bookIDs(res.Records))
}

func (s *CollectionSuite) TestLoad_DocIDBecomesIDWhenMissing() {
	s.putRemote(remote.Books, "doc-7", map[string]interface{}{"title": "Admin added"})
	res, err := s.books.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(res.Records, 1)
	s.Equal("doc-7", res.Records[0].ID)
}

func (s *CollectionSuite) TestLoad_SkipsUndecodableDocuments() {
	_, err := s.store.Put(s.ctx, remote.Books, "bad", json.RawMessage(`{"copies":"many"}`))
	s.Require().NoError(err)
	s.putRemote(remote.Books, "good", catalog.Book{ID: "b1"})

	res, err := s.books.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"b1"}, bookIDs(res.Records))
}

func (s *CollectionSuite) TestLoad_TagsAccountRoles() {
	s.putRemote(remote.Staff, "staff-1", accounts.Account{ID: "staff-1", Email: "lin@library.com"})
	s.putRemote(remote.Users, "user-1", accounts.Account{ID: "user-1", Email: "user@library.com", IsAdmin: true})

	res, err := s.users.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(res.Records, 2)
	byEmail := map[string]accounts.Account{}
	for _, a := range res.Records {
		byEmail[a.Email] = a
	}
	s.True(byEmail["lin@library.com"].IsAdmin)
	s.False(byEmail["user@library.com"].IsAdmin)
}

func (s *CollectionSuite) TestLoad_StaffWinsSharedEmail() {
	s.putRemote(remote.Users, "user-7", accounts.Account{ID: "user-7", Email: "lin@library.com", Name: "as patron"})
	s.putRemote(remote.Staff, "staff-7", accounts.Account{ID: "staff-7", Email: "Lin@Library.com", Name: "as staff"})

	res, err := accounts.NewCollection(s.kv, s.store, nil).Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(res.Records, 1)
	s.Equal("staff-7", res.Records[0].ID)
	s.True(res.Records[0].IsAdmin)
}

func (s *CollectionSuite) TestLoad_PreferLocalWritesBack() {
	books := reconcile.NewCollection(s.kv, s.store, reconcile.Options[catalog.Book]{
		LocalKey: localstore.KeyBooks,
		Remote:   []string{remote.Books},
		PreferLocal: func(theirs, ours catalog.Book) bool {
			return ours.UpdatedAt > theirs.UpdatedAt
		},
	}, nil)
	s.putRemote(remote.Books, "doc-1", catalog.Book{ID: "b1", Title: "old", UpdatedAt: "2025-03-01"})
	s.Require().NoError(books.WriteLocal(s.ctx, []catalog.Book{
		{ID: "b1", Title: "edited offline", RemoteID: "doc-1", Version: 1, UpdatedAt: "2025-03-02"},
	}))

	res, err := books.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(res.Records, 1)
	s.Equal("edited offline", res.Records[0].Title)
	s.Equal(int64(2), res.Records[0].Version)

	doc, err := s.store.Get(s.ctx, remote.Books, "doc-1")
	s.Require().NoError(err)
	var b catalog.Book
	s.Require().NoError(json.Unmarshal(doc.Data, &b))
	s.Equal("edited offline", b.Title)
}

func (s *CollectionSuite) TestSave_CreateAttachesRemoteID() {
	res, err := s.books.Save(s.ctx, catalog.Book{ID: "b1", Title: "Dune"})
	s.Require().NoError(err)
	s.NoError(res.RemoteErr)
	s.True(res.Created)
	s.NotEmpty(res.Record.RemoteID)

	loaded, err := s.books.Load(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(loaded.Records, 1)
	s.Equal(res.Record, loaded.Records[0])
}

func (s *CollectionSuite) TestSave_UpdatesByRemoteID() {
	first, err := s.books.Save(s.ctx, catalog.Book{ID: "b1", Title: "Dune"})
	s.Require().NoError(err)

	b := first.Record
	b.Title = "Dune (2nd ed.)"
	second, err := s.books.Save(s.ctx, b)
	s.Require().NoError(err)
	s.False(second.Created)
	s.Equal(first.Record.RemoteID, second.Record.RemoteID)
	s.Equal(int64(2), second.Record.Version)

	docs, err := s.store.List(s.ctx, remote.Books)
	s.Require().NoError(err)
	s.Len(docs, 1)
}

func (s *CollectionSuite) TestSave_RemoteFailureStillPersistsLocally() {
	s.store.Fail = func(string, string) error { return remote.ErrUnavailable }

	res, err := s.books.Save(s.ctx, catalog.Book{ID: "b1", Title: "Offline"})
	s.Require().NoError(err)
	s.ErrorIs(res.RemoteErr, remote.ErrUnavailable)
	s.False(res.Created)
	s.Empty(res.Record.RemoteID)

	local, err := s.books.Local(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"b1"}, bookIDs(local))
}

func (s *CollectionSuite) TestSave_KeyedAccountsRoutedByRole() {
	_, err := s.users.Save(s.ctx, accounts.Account{ID: "staff-1", Email: "lin@library.com", IsAdmin: true})
	s.Require().NoError(err)
	_, err = s.users.Save(s.ctx, accounts.Account{ID: "user-1", Email: "user@library.com"})
	s.Require().NoError(err)

	_, err = s.store.Get(s.ctx, remote.Staff, "staff-1")
	s.NoError(err)
	_, err = s.store.Get(s.ctx, remote.Users, "user-1")
	s.NoError(err)
}

func (s *CollectionSuite) TestSaveConditional_Conflict() {
	saved, err := s.books.Save(s.ctx, catalog.Book{ID: "b1", AvailableCopies: 1})
	s.Require().NoError(err)
	stale := saved.Record

	// Another session writes first.
	other := stale
	other.AvailableCopies = 0
	_, err = s.books.SaveConditional(s.ctx, other)
	s.Require().NoError(err)

	stale.Title = "stale write"
	_, err = s.books.SaveConditional(s.ctx, stale)
	s.ErrorIs(err, remote.ErrConflict)

	local, err := s.books.Local(s.ctx)
	s.Require().NoError(err)
	s.Equal("", local[0].Title)
}

func (s *CollectionSuite) TestDelete() {
	saved, err := s.books.Save(s.ctx, catalog.Book{ID: "b1"})
	s.Require().NoError(err)

	res, err := s.books.Delete(s.ctx, saved.Record)
	s.Require().NoError(err)
	s.NoError(res.RemoteErr)

	docs, err := s.store.List(s.ctx, remote.Books)
	s.Require().NoError(err)
	s.Empty(docs)

	_, err = s.books.Delete(s.ctx, saved.Record)
	s.True(errors.Is(err, reconcile.ErrNotFound))
}

func (s *CollectionSuite) TestDelete_RemoteFailureStillDeletesLocally() {
	saved, err := s.books.Save(s.ctx, catalog.Book{ID: "b1"})
	s.Require().NoError(err)
	s.store.Fail = func(op, _ string) error {
		if op == "delete" {
			return remote.ErrForbidden
		}
		return nil
	}

	res, err := s.books.Delete(s.ctx, saved.Record)
	s.Require().NoError(err)
	s.ErrorIs(res.RemoteErr, remote.ErrForbidden)

	local, err := s.books.Local(s.ctx)
	s.Require().NoError(err)
	s.Empty(local)
}

func (s *CollectionSuite) TestDisabledRemoteIsLocalOnly() {
	books := reconcile.NewCollection(s.kv, remote.Disabled{}, reconcile.Options[catalog.Book]{
		LocalKey: localstore.KeyBooks,
		Remote:   []string{remote.Books},
	}, nil)
	s.False(books.Mirrored())

	res, err := books.Save(s.ctx, catalog.Book{ID: "b1"})
	s.Require().NoError(err)
	s.NoError(res.RemoteErr)

	loaded, err := books.Load(s.ctx)
	s.Require().NoError(err)
	s.NoError(loaded.RemoteErr)
	s.Len(loaded.Records, 1)
}

type prefs struct {
	LoanDuration int     `json:"loanDuration"`
	FinePerDay   float64 `json:"finePerDay"`
}

func TestObject_LoadPrefersRemote(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemStore()
	store := remote.NewMemory()
	obj := reconcile.NewObject(kv, store, localstore.KeySettings, remote.Settings, remote.SettingsDoc,
		prefs{LoanDuration: 14, FinePerDay: 0.5}, nil)

	res, err := obj.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 14, res.Value.LoanDuration)

	_, err = store.Put(ctx, remote.Settings, remote.SettingsDoc, json.RawMessage(`{"loanDuration":21}`))
	require.NoError(t, err)
	res, err = obj.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 21, res.Value.LoanDuration)
	assert.Equal(t, 0.5, res.Value.FinePerDay)

	local, err := obj.Local(ctx)
	require.NoError(t, err)
	assert.Equal(t, 21, local.LoanDuration)
}

func TestObject_SaveWritesBoth(t *testing.T) {
	ctx := context.Background()
	kv := localstore.NewMemStore()
	store := remote.NewMemory()
	obj := reconcile.NewObject(kv, store, localstore.KeySettings, remote.Settings, remote.SettingsDoc, prefs{}, nil)

	res, err := obj.Save(ctx, prefs{LoanDuration: 7, FinePerDay: 1})
	require.NoError(t, err)
	assert.NoError(t, res.RemoteErr)

	doc, err := store.Get(ctx, remote.Settings, remote.SettingsDoc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"loanDuration":7,"finePerDay":1}`, string(doc.Data))

	store.Fail = func(string, string) error { return remote.ErrUnavailable }
	res, err = obj.Save(ctx, prefs{LoanDuration: 9})
	require.NoError(t, err)
	assert.ErrorIs(t, res.RemoteErr, remote.ErrUnavailable)
	local, err := obj.Local(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, local.LoanDuration)
}
