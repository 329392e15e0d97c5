// Package migrate copies the local library into a remote document store.
package migrate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/branches"
	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/circulation"
	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/logging"
	"github.com/blackwell-systems/libractl/internal/reconcile"
	"github.com/blackwell-systems/libractl/internal/remote"
)

// ErrNoRemote is returned when no remote backend is configured.
var ErrNoRemote = errors.New("no remote store configured")

// Options tunes a run.
type Options struct {
	// DryRun lists what would be pushed without writing.
	DryRun bool
	// Limit caps the number of documents pushed; 0 means unlimited.
	Limit int
}

// Failure is one document that could not be pushed.
type Failure struct {
	Collection string
	Key        string
	Err        error
}

// Report summarizes a run.
type Report struct {
	Pushed  []LedgerEntry
	Skipped int
	Failed  []Failure
}

// Migrator pushes local collections to a remote store.
type Migrator struct {
	kv     localstore.KV
	store  remote.Store
	ledger *Ledger
	log    *zap.Logger
}

// New creates a migrator.
func New(kv localstore.KV, store remote.Store, ledger *Ledger, log *zap.Logger) *Migrator {
	return &Migrator{kv: kv, store: store, ledger: ledger, log: logging.OrNop(log)}
}

// Run pushes accounts, branches, books, borrowing records and settings,
// in that order. Documents already in the ledger are skipped; a failed
// document is reported and the run continues.
func (m *Migrator) Run(ctx context.Context, opts Options) (Report, error) {
	var rep Report
	if m.store == nil || remote.IsDisabled(m.store) {
		return rep, ErrNoRemote
	}
	done, err := m.ledger.Done()
	if err != nil {
		return rep, fmt.Errorf("reading ledger: %w", err)
	}
	r := &run{m: m, opts: opts, done: done, rep: &rep}

	if err := pushAll(ctx, r, accounts.NewCollection(m.kv, m.store, m.log), accounts.Collection); err != nil {
		return rep, err
	}
	if err := pushAll(ctx, r, branches.NewCollection(m.kv, m.store, m.log), constant[branches.Branch](remote.Branches)); err != nil {
		return rep, err
	}
	if err := pushAll(ctx, r, catalog.NewCollection(m.kv, m.store, m.log), constant[catalog.Book](remote.Books)); err != nil {
		return rep, err
	}
	if err := pushAll(ctx, r, circulation.NewRecordCollection(m.kv, m.store, m.log), constant[circulation.Record](remote.BorrowingRecords)); err != nil {
		return rep, err
	}
	if err := r.pushSettings(ctx); err != nil {
		return rep, err
	}

	m.log.Info("Migration finished",
		zap.Int("pushed", len(rep.Pushed)), zap.Int("skipped", rep.Skipped), zap.Int("failed", len(rep.Failed)))
	return rep, nil
}

type run struct {
	m    *Migrator
	opts Options
	done map[string]bool
	rep  *Report
}

// admit reports whether the document should be pushed now.
func (r *run) admit(collection, key string) bool {
	if r.done[ledgerKey(collection, key)] {
		r.rep.Skipped++
		return false
	}
	return r.opts.Limit <= 0 || len(r.rep.Pushed) < r.opts.Limit
}

func (r *run) record(collection, key, docID string) error {
	e := LedgerEntry{Collection: collection, Key: key, DocID: docID}
	r.rep.Pushed = append(r.rep.Pushed, e)
	if r.opts.DryRun {
		return nil
	}
	if err := r.m.ledger.Append(e); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}

func (r *run) fail(collection, key string, err error) {
	r.m.log.Warn("Document not migrated",
		zap.String("collection", collection), zap.String("key", key), zap.Error(err))
	r.rep.Failed = append(r.rep.Failed, Failure{Collection: collection, Key: key, Err: err})
}

func constant[T any](name string) func(T) string {
	return func(T) string { return name }
}

// pushAll pushes every local record of coll and writes the assigned
// document ids back to the local store.
func pushAll[T reconcile.Record[T]](ctx context.Context, r *run, coll *reconcile.Collection[T], target func(T) string) error {
	local, err := coll.Local(ctx)
	if err != nil {
		return err
	}
	changed := false
	for i, rec := range local {
		name := target(rec)
		key := rec.DedupKey()
		if !r.admit(name, key) {
			continue
		}
		if r.opts.DryRun {
			if err := r.record(name, key, rec.DocID()); err != nil {
				return err
			}
			continue
		}
		pushed, _, err := coll.Push(ctx, rec, false)
		if err != nil {
			r.fail(name, key, err)
			continue
		}
		local[i] = pushed
		changed = true
		if err := r.record(name, key, pushed.DocID()); err != nil {
			return err
		}
	}
	if changed {
		return coll.WriteLocal(ctx, local)
	}
	return nil
}

func (r *run) pushSettings(ctx context.Context) error {
	obj := circulation.NewSettingsObject(r.m.kv, r.m.store, r.m.log)
	if !r.admit(remote.Settings, remote.SettingsDoc) {
		return nil
	}
	if r.opts.DryRun {
		return r.record(remote.Settings, remote.SettingsDoc, remote.SettingsDoc)
	}
	s, err := obj.Local(ctx)
	if err != nil {
		return err
	}
	res, err := obj.Save(ctx, s.WithDefaults())
	if err != nil {
		return err
	}
	if res.RemoteErr != nil {
		r.fail(remote.Settings, remote.SettingsDoc, res.RemoteErr)
		return nil
	}
	return r.record(remote.Settings, remote.SettingsDoc, remote.SettingsDoc)
}
