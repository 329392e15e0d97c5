package app

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/branches"
	"github.com/blackwell-systems/libractl/internal/circulation"
	"github.com/blackwell-systems/libractl/internal/reconcile"
	"github.com/blackwell-systems/libractl/internal/remote"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Merge the remote store into the local one and report status",
		Long: `Read every collection from the remote store, merge it with the local
copy (remote wins on conflicts) and write the union back locally.
Collections whose remote read fails keep their local data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			if remote.IsDisabled(store) {
				warn("No remote store configured (or --offline); nothing to sync")
			}

			failed := 0
			report := func(name string, n int, err error) {
				if err != nil {
					failed++
					fmt.Printf("  %-18s %s\n", name, color.RedString("remote failed, %d local: %v", n, err))
					return
				}
				fmt.Printf("  %-18s %s\n", name, color.GreenString("%d records", n))
			}

			header("Sync")
			if err := syncCollection(ctx, "books", books(), report); err != nil {
				return err
			}
			if err := syncCollection(ctx, "accounts", users(), report); err != nil {
				return err
			}
			if err := syncCollection(ctx, "branches", branches.NewCollection(kv, store, log), report); err != nil {
				return err
			}
			if err := syncCollection(ctx, "borrowingRecords", circulation.NewRecordCollection(kv, store, log), report); err != nil {
				return err
			}
			res, err := circulation.NewSettingsObject(kv, store, log).Load(ctx)
			if err != nil {
				return err
			}
			report("settings", 1, res.RemoteErr)

			if failed > 0 {
				warn("%d collections used local data only", failed)
			}
			return nil
		},
	}
}

func syncCollection[T reconcile.Record[T]](ctx context.Context, name string, coll *reconcile.Collection[T], report func(string, int, error)) error {
	res, err := coll.Load(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	report(name, len(res.Records), res.RemoteErr)
	return nil
}
