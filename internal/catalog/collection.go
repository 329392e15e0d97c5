package catalog

import (
	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/reconcile"
	"github.com/blackwell-systems/libractl/internal/remote"
)

// NewCollection binds the catalog to the local "books" key and the remote
// books collection. Books get store-assigned document ids.
func NewCollection(kv localstore.KV, store remote.Store, log *zap.Logger) *reconcile.Collection[Book] {
	return reconcile.NewCollection(kv, store, reconcile.Options[Book]{
		LocalKey: localstore.KeyBooks,
		Remote:   []string{remote.Books},
	}, log)
}
