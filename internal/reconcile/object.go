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

// ObjectResult is the outcome of an Object read or write.
type ObjectResult[T any] struct {
	Value     T
	RemoteErr error
}

// Object reconciles a singleton document such as library settings.
type Object[T any] struct {
	kv         localstore.KV
	store      remote.Store
	localKey   string
	collection string
	docID      string
	def        T
	log        *zap.Logger
}

// NewObject binds a singleton to localKey and collection/docID. Missing
// fields fall back to def.
func NewObject[T any](kv localstore.KV, store remote.Store, localKey, collection, docID string, def T, log *zap.Logger) *Object[T] {
	if store == nil {
		store = remote.Disabled{}
	}
	return &Object[T]{
		kv:         kv,
		store:      store,
		localKey:   localKey,
		collection: collection,
		docID:      docID,
		def:        def,
		log:        logging.OrNop(log),
	}
}

// Local reads the local copy, or the default.
func (o *Object[T]) Local(ctx context.Context) (T, error) {
	v, _, err := localstore.ReadObject(ctx, o.kv, o.localKey, o.def)
	return v, err
}

// Load prefers the remote copy when one exists and writes it back
// locally. Only local failures are returned as errors.
func (o *Object[T]) Load(ctx context.Context) (ObjectResult[T], error) {
	local, err := o.Local(ctx)
	if err != nil {
		return ObjectResult[T]{}, err
	}
	if remote.IsDisabled(o.store) {
		return ObjectResult[T]{Value: local}, nil
	}

	doc, err := o.store.Get(ctx, o.collection, o.docID)
	if errors.Is(err, remote.ErrNotFound) {
		return ObjectResult[T]{Value: local}, nil
	}
	if err != nil {
		o.log.Warn("Remote read failed, using local data",
			zap.String("collection", o.collection), zap.String("op", "get"),
			zap.String("id", o.docID), zap.Error(err))
		return ObjectResult[T]{Value: local, RemoteErr: err}, nil
	}

	v := o.def
	if err := json.Unmarshal(doc.Data, &v); err != nil {
		o.log.Warn("Ignoring undecodable remote document",
			zap.String("collection", o.collection), zap.String("id", o.docID), zap.Error(err))
		return ObjectResult[T]{Value: local}, nil
	}
	if err := localstore.WriteObject(ctx, o.kv, o.localKey, v); err != nil {
		return ObjectResult[T]{}, err
	}
	return ObjectResult[T]{Value: v}, nil
}

// Save writes v to both stores.
func (o *Object[T]) Save(ctx context.Context, v T) (ObjectResult[T], error) {
	res := ObjectResult[T]{Value: v}
	if !remote.IsDisabled(o.store) {
		data, err := json.Marshal(v)
		if err != nil {
			return res, fmt.Errorf("encoding %s: %w", o.localKey, err)
		}
		if _, err := o.store.Put(ctx, o.collection, o.docID, data); err != nil {
			o.log.Warn("Remote write failed",
				zap.String("collection", o.collection), zap.String("op", "put"),
				zap.String("id", o.docID), zap.Error(err))
			res.RemoteErr = err
		}
	}
	if err := localstore.WriteObject(ctx, o.kv, o.localKey, v); err != nil {
		return res, err
	}
	return res, nil
}
