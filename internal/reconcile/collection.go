package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/logging"
	"github.com/blackwell-systems/libractl/internal/remote"
)

// ErrNotFound is returned when deleting a record absent from the local store.
var ErrNotFound = errors.New("record not found")

// Options binds a Collection to its storage locations.
type Options[T any] struct {
	// LocalKey is the local store key holding the JSON array.
	LocalKey string
	// Remote lists the remote collections merged on Load. Empty means the
	// collection is local-only.
	Remote []string
	// Route picks the remote collection a record is written to. Defaults
	// to Remote[0].
	Route func(T) string
	// Tag adjusts a record read from the named remote collection.
	Tag func(T, string) T
	// DocKey, when set, makes the remote document id a function of the
	// record (Put); otherwise the store assigns one (Create).
	DocKey func(T) string
	// PreferLocal, when set, lets a local record beat the remote copy with
	// the same key on Load. The local record is then written back remotely.
	PreferLocal func(remote, local T) bool
}

// LoadResult is the outcome of Load. RemoteErr is set when the remote
// read failed and Records hold local data only.
type LoadResult[T any] struct {
	Records   []T
	RemoteErr error
}

// SaveResult is the outcome of Save. Record carries any remote identity
// assigned by the store.
type SaveResult[T any] struct {
	Record    T
	Created   bool
	RemoteErr error
}

// DeleteResult is the outcome of Delete.
type DeleteResult struct {
	RemoteErr error
}

// Collection reconciles one logical collection.
type Collection[T Record[T]] struct {
	kv    localstore.KV
	store remote.Store
	opts  Options[T]
	log   *zap.Logger
}

// NewCollection binds a collection to its stores. A nil store behaves
// like remote.Disabled.
func NewCollection[T Record[T]](kv localstore.KV, store remote.Store, opts Options[T], log *zap.Logger) *Collection[T] {
	if store == nil {
		store = remote.Disabled{}
	}
	return &Collection[T]{kv: kv, store: store, opts: opts, log: logging.OrNop(log)}
}

// Mirrored reports whether writes reach a remote store.
func (c *Collection[T]) Mirrored() bool {
	return len(c.opts.Remote) > 0 && !remote.IsDisabled(c.store)
}

// Local reads the local array only.
func (c *Collection[T]) Local(ctx context.Context) ([]T, error) {
	return localstore.ReadCollection[T](ctx, c.kv, c.opts.LocalKey)
}

// WriteLocal replaces the local array.
func (c *Collection[T]) WriteLocal(ctx context.Context, recs []T) error {
	return localstore.WriteCollection(ctx, c.kv, c.opts.LocalKey, recs)
}

// Load merges the remote collections into the local array and writes the
// union back locally. Only local failures are returned as errors.
func (c *Collection[T]) Load(ctx context.Context) (LoadResult[T], error) {
	local, err := c.Local(ctx)
	if err != nil {
		return LoadResult[T]{}, err
	}
	if !c.Mirrored() {
		return LoadResult[T]{Records: local}, nil
	}

	remoteRecs, err := c.fetch(ctx)
	if err != nil {
		return LoadResult[T]{Records: local, RemoteErr: err}, nil
	}

	merged, kept := MergeFunc(remoteRecs, local, c.opts.PreferLocal)
	for _, rec := range kept {
		pushed, _, err := c.Push(ctx, rec, false)
		if err != nil {
			continue
		}
		merged = Upsert(merged, pushed)
	}
	if err := c.WriteLocal(ctx, merged); err != nil {
		return LoadResult[T]{}, err
	}
	return LoadResult[T]{Records: merged}, nil
}

// fetch reads every remote collection. Any failure discards the partial
// read.
func (c *Collection[T]) fetch(ctx context.Context) ([]T, error) {
	var out []T
	for _, coll := range c.opts.Remote {
		docs, err := c.store.List(ctx, coll)
		if err != nil {
			c.log.Warn("Remote read failed, using local data",
				zap.String("collection", coll), zap.String("op", "list"), zap.Error(err))
			return nil, err
		}
		for _, d := range docs {
			var rec T
			if err := json.Unmarshal(d.Data, &rec); err != nil {
				c.log.Warn("Skipping undecodable remote document",
					zap.String("collection", coll), zap.String("id", d.ID), zap.Error(err))
				continue
			}
			rec = rec.WithDoc(d.ID, d.Version)
			if c.opts.Tag != nil {
				rec = c.opts.Tag(rec, coll)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (c *Collection[T]) route(rec T) string {
	if c.opts.Route != nil {
		return c.opts.Route(rec)
	}
	if len(c.opts.Remote) == 0 {
		return ""
	}
	return c.opts.Remote[0]
}

// Push writes rec to the remote store only. With conditional set and a
// known document version, a concurrent remote change fails with
// remote.ErrConflict. Unmirrored collections return rec unchanged.
func (c *Collection[T]) Push(ctx context.Context, rec T, conditional bool) (T, bool, error) {
	if !c.Mirrored() {
		return rec, false, nil
	}
	coll := c.route(rec)
	data, err := json.Marshal(rec)
	if err != nil {
		return rec, false, fmt.Errorf("encoding %s record: %w", coll, err)
	}

	var (
		doc     remote.Document
		created bool
	)
	switch {
	case c.opts.DocKey != nil:
		id := c.opts.DocKey(rec)
		if conditional && rec.DocVersion() > 0 {
			doc, err = c.store.Update(ctx, coll, id, data, rec.DocVersion())
		} else {
			doc, err = c.store.Put(ctx, coll, id, data)
		}
	case rec.DocID() != "":
		var ifVersion int64
		if conditional {
			ifVersion = rec.DocVersion()
		}
		doc, err = c.store.Update(ctx, coll, rec.DocID(), data, ifVersion)
		if errors.Is(err, remote.ErrNotFound) && !conditional {
			// Deleted remotely; recreate under the same id.
			doc, err = c.store.Put(ctx, coll, rec.DocID(), data)
		}
	default:
		doc, err = c.store.Create(ctx, coll, data)
		created = err == nil
	}
	if err != nil {
		if !errors.Is(err, remote.ErrConflict) {
			c.log.Warn("Remote write failed",
				zap.String("collection", coll), zap.String("op", "save"),
				zap.String("id", rec.DedupKey()), zap.Error(err))
		}
		return rec, false, err
	}
	return rec.WithDoc(doc.ID, doc.Version), created, nil
}

// Save writes rec to the remote store when possible and always to the
// local array, replacing any record with the same dedup key.
func (c *Collection[T]) Save(ctx context.Context, rec T) (SaveResult[T], error) {
	pushed, created, remoteErr := c.Push(ctx, rec, false)
	if err := c.saveLocal(ctx, pushed); err != nil {
		return SaveResult[T]{}, err
	}
	return SaveResult[T]{Record: pushed, Created: created, RemoteErr: remoteErr}, nil
}

// SaveConditional is Save with optimistic concurrency: when the remote
// copy changed since rec was read, nothing is written and
// remote.ErrConflict is returned.
func (c *Collection[T]) SaveConditional(ctx context.Context, rec T) (SaveResult[T], error) {
	pushed, created, remoteErr := c.Push(ctx, rec, true)
	if errors.Is(remoteErr, remote.ErrConflict) {
		return SaveResult[T]{Record: rec}, remoteErr
	}
	if err := c.saveLocal(ctx, pushed); err != nil {
		return SaveResult[T]{}, err
	}
	return SaveResult[T]{Record: pushed, Created: created, RemoteErr: remoteErr}, nil
}

func (c *Collection[T]) saveLocal(ctx context.Context, rec T) error {
	local, err := c.Local(ctx)
	if err != nil {
		return err
	}
	return c.WriteLocal(ctx, Upsert(local, rec))
}

// Delete removes rec remotely (by document id, when mirrored) and always
// locally. A record missing locally yields ErrNotFound after the remote
// delete was attempted.
func (c *Collection[T]) Delete(ctx context.Context, rec T) (DeleteResult, error) {
	var res DeleteResult
	if c.Mirrored() {
		id := rec.DocID()
		if id == "" && c.opts.DocKey != nil {
			id = c.opts.DocKey(rec)
		}
		if id != "" {
			coll := c.route(rec)
			err := c.store.Delete(ctx, coll, id)
			if err != nil && !errors.Is(err, remote.ErrNotFound) {
				c.log.Warn("Remote delete failed",
					zap.String("collection", coll), zap.String("op", "delete"),
					zap.String("id", id), zap.Error(err))
				res.RemoteErr = err
			}
		}
	}

	local, err := c.Local(ctx)
	if err != nil {
		return res, err
	}
	remaining, found := Without(local, rec.DedupKey())
	if !found {
		return res, fmt.Errorf("%w: %s", ErrNotFound, rec.DedupKey())
	}
	if err := c.WriteLocal(ctx, remaining); err != nil {
		return res, err
	}
	return res, nil
}
