package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/branches"
	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/circulation"
	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/reconcile"
	"github.com/blackwell-systems/libractl/internal/util"
)

func books() *reconcile.Collection[catalog.Book] {
	return catalog.NewCollection(kv, store, log)
}

func users() *reconcile.Collection[accounts.Account] {
	return accounts.NewCollection(kv, store, log)
}

func desk() *circulation.Desk {
	return circulation.NewDesk(circulation.NewStoreRepository(kv, store, log), log)
}

// remoteWarning reports a remote failure that was absorbed by a local
// fallback.
func remoteWarning(what string, err error) {
	if err != nil {
		warn("Remote %s failed; local copy used: %v", what, err)
	}
}

func printWarnings(ws []string) {
	for _, w := range ws {
		warn("%s", w)
	}
}

// confirm asks a yes/no question on a terminal. Non-interactive runs
// answer no unless yes is already set.
func confirm(yes bool, format string, a ...interface{}) bool {
	if yes {
		return true
	}
	if !util.Interactive() {
		return false
	}
	fmt.Printf(format+" (y/N): ", a...)
	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

func formatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func availability(b catalog.Book) string {
	s := fmt.Sprintf("%d/%d available", b.AvailableCopies, b.Copies)
	if b.AvailableCopies == 0 {
		return color.RedString(s)
	}
	return color.GreenString(s)
}

func branchName(ctx context.Context, id string) string {
	all, err := localstore.ReadCollection[branches.Branch](ctx, kv, localstore.KeyBranches)
	if err != nil || len(all) == 0 {
		all = branches.Defaults()
	}
	return branches.Name(all, id)
}
