package circulation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/logging"
	"github.com/blackwell-systems/libractl/internal/reconcile"
	"github.com/blackwell-systems/libractl/internal/remote"
)

// Snapshot is the state a transition is computed from.
type Snapshot struct {
	Books    []catalog.Book
	Accounts []accounts.Account
	Records  []Record
	Settings Settings
	// Warnings describe remote reads that fell back to local data.
	Warnings []string
}

// Change is the local side of one transition.
type Change struct {
	Book    catalog.Book
	Account accounts.Account
	Record  Record
}

// Repository is everything the desk needs from storage.
type Repository interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	// PushBook mirrors b conditionally on its version; a concurrent
	// remote change yields remote.ErrConflict.
	PushBook(ctx context.Context, b catalog.Book) (catalog.Book, error)
	PushRecord(ctx context.Context, r Record) (Record, error)
	PushAccount(ctx context.Context, a accounts.Account) (accounts.Account, error)
	// Unpush removes a mirrored record; used to compensate a failed commit.
	Unpush(ctx context.Context, r Record) error
	// Commit upserts the change into the local store. Either all three
	// writes land or none do.
	Commit(ctx context.Context, c Change) error
}

// NewRecordCollection binds records to the local and remote
// "borrowingRecords" stores. Records get store-assigned document ids. A
// record only moves from borrowed to returned, so a local return beats a
// remote copy still marked borrowed.
func NewRecordCollection(kv localstore.KV, store remote.Store, log *zap.Logger) *reconcile.Collection[Record] {
	return reconcile.NewCollection(kv, store, reconcile.Options[Record]{
		LocalKey:    localstore.KeyBorrowingRecords,
		Remote:      []string{remote.BorrowingRecords},
		PreferLocal: returnedLocally,
	}, log)
}

func returnedLocally(theirs, ours Record) bool {
	return theirs.Active() && !ours.Active()
}

// NewSettingsObject binds settings to the local "settings" key and the
// remote settings/librarySettings document.
func NewSettingsObject(kv localstore.KV, store remote.Store, log *zap.Logger) *reconcile.Object[Settings] {
	return reconcile.NewObject(kv, store, localstore.KeySettings, remote.Settings, remote.SettingsDoc, DefaultSettings(), log)
}

// StoreRepository is the Repository backed by reconciled collections.
type StoreRepository struct {
	books    *reconcile.Collection[catalog.Book]
	accounts *reconcile.Collection[accounts.Account]
	records  *reconcile.Collection[Record]
	settings *reconcile.Object[Settings]
	log      *zap.Logger
}

var _ Repository = (*StoreRepository)(nil)

// NewStoreRepository wires the collections over kv and store.
func NewStoreRepository(kv localstore.KV, store remote.Store, log *zap.Logger) *StoreRepository {
	return &StoreRepository{
		books:    catalog.NewCollection(kv, store, log),
		accounts: accounts.NewCollection(kv, store, log),
		records:  NewRecordCollection(kv, store, log),
		settings: NewSettingsObject(kv, store, log),
		log:      logging.OrNop(log),
	}
}

func (r *StoreRepository) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	warn := func(what string, err error) {
		if err != nil {
			snap.Warnings = append(snap.Warnings, fmt.Sprintf("using local %s: %v", what, err))
		}
	}

	books, err := r.books.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Books = books.Records
	warn("books", books.RemoteErr)

	accts, err := r.accounts.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Accounts = accts.Records
	warn("accounts", accts.RemoteErr)

	recs, err := r.records.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Records = recs.Records
	warn("borrowing records", recs.RemoteErr)

	settings, err := r.settings.Load(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Settings = settings.Value.WithDefaults()
	warn("settings", settings.RemoteErr)

	// A stale remote copy can win the merge after an outage; the record
	// log decides who holds what.
	booksChanged, accountsChanged := applyLog(snap.Books, snap.Accounts, snap.Records)
	if booksChanged {
		if err := r.books.WriteLocal(ctx, snap.Books); err != nil {
			return Snapshot{}, fmt.Errorf("writing books: %w", err)
		}
	}
	if accountsChanged {
		if err := r.accounts.WriteLocal(ctx, snap.Accounts); err != nil {
			return Snapshot{}, fmt.Errorf("writing accounts: %w", err)
		}
	}
	return snap, nil
}

func (r *StoreRepository) PushBook(ctx context.Context, b catalog.Book) (catalog.Book, error) {
	out, _, err := r.books.Push(ctx, b, true)
	return out, err
}

func (r *StoreRepository) PushRecord(ctx context.Context, rec Record) (Record, error) {
	out, _, err := r.records.Push(ctx, rec, false)
	return out, err
}

func (r *StoreRepository) PushAccount(ctx context.Context, a accounts.Account) (accounts.Account, error) {
	out, _, err := r.accounts.Push(ctx, a, false)
	return out, err
}

func (r *StoreRepository) Unpush(ctx context.Context, rec Record) error {
	if rec.RemoteID == "" {
		return nil
	}
	res, err := r.records.Delete(ctx, rec)
	if err != nil && !errors.Is(err, reconcile.ErrNotFound) {
		return err
	}
	return res.RemoteErr
}

// Commit writes books, then accounts, then records, restoring the
// earlier collections if a later write fails.
func (r *StoreRepository) Commit(ctx context.Context, c Change) error {
	books, err := r.books.Local(ctx)
	if err != nil {
		return err
	}
	accts, err := r.accounts.Local(ctx)
	if err != nil {
		return err
	}
	recs, err := r.records.Local(ctx)
	if err != nil {
		return err
	}

	if err := r.books.WriteLocal(ctx, reconcile.Upsert(clone(books), c.Book)); err != nil {
		return fmt.Errorf("writing book: %w", err)
	}
	if err := r.accounts.WriteLocal(ctx, reconcile.Upsert(clone(accts), c.Account)); err != nil {
		r.restore("books", func() error { return r.books.WriteLocal(ctx, books) })
		return fmt.Errorf("writing account: %w", err)
	}
	if err := r.records.WriteLocal(ctx, reconcile.Upsert(clone(recs), c.Record)); err != nil {
		r.restore("accounts", func() error { return r.accounts.WriteLocal(ctx, accts) })
		r.restore("books", func() error { return r.books.WriteLocal(ctx, books) })
		return fmt.Errorf("writing borrowing record: %w", err)
	}
	return nil
}

func (r *StoreRepository) restore(what string, undo func() error) {
	if err := undo(); err != nil {
		r.log.Error("Rollback failed; local store may be inconsistent",
			zap.String("collection", what), zap.Error(err))
	}
}

func clone[T any](in []T) []T {
	return append([]T(nil), in...)
}
