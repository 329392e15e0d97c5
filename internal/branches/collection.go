package branches

import (
	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/reconcile"
	"github.com/blackwell-systems/libractl/internal/remote"
)

// NewCollection binds branches to the local and remote "branches" stores.
func NewCollection(kv localstore.KV, store remote.Store, log *zap.Logger) *reconcile.Collection[Branch] {
	return reconcile.NewCollection(kv, store, reconcile.Options[Branch]{
		LocalKey: localstore.KeyBranches,
		Remote:   []string{remote.Branches},
		DocKey:   func(b Branch) string { return b.ID },
	}, log)
}
