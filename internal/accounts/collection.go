package accounts

import (
	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/reconcile"
	"github.com/blackwell-systems/libractl/internal/remote"
)

// NewCollection binds accounts to the local "users" key and the two
// role-partitioned remote collections. Document ids equal account ids.
// Staff is read first so an email present in both collections resolves
// to the staff account.
func NewCollection(kv localstore.KV, store remote.Store, log *zap.Logger) *reconcile.Collection[Account] {
	return reconcile.NewCollection(kv, store, reconcile.Options[Account]{
		LocalKey: localstore.KeyUsers,
		Remote:   []string{remote.Staff, remote.Users},
		Route:    Collection,
		Tag:      TagRole,
		DocKey:   func(a Account) string { return a.ID },
	}, log)
}
