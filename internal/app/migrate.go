package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/config"
	"github.com/blackwell-systems/libractl/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	var (
		dryRun bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Push the local library into the remote store",
		Long: `Copy every local collection (accounts, branches, books, borrowing
records, settings) into the configured remote store. Each pushed document
is recorded in a ledger next to the local data, so interrupted runs can
be resumed without duplicating documents.

Examples:
  libractl migrate --dry-run
  libractl migrate -n 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := migrate.OpenLedger(migrate.DefaultLedgerPath(config.DataDir()))
			if err != nil {
				return err
			}
			rep, err := migrate.New(kv, store, ledger, log).Run(commandContext(cmd), migrate.Options{
				DryRun: dryRun,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			verb := "Pushed"
			if dryRun {
				verb = "Would push"
			}
			for _, e := range rep.Pushed {
				fmt.Printf("  %s/%s\n", e.Collection, e.Key)
			}
			for _, f := range rep.Failed {
				warn("%s/%s: %v", f.Collection, f.Key, f.Err)
			}
			ok("%s %d documents, skipped %d already migrated", verb, len(rep.Pushed), rep.Skipped)
			if len(rep.Failed) > 0 {
				return fmt.Errorf("%d documents failed; run again to retry", len(rep.Failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List documents without pushing")
	cmd.Flags().IntVarP(&limit, "n", "n", 0, "Max documents per run (0 = unlimited)")
	return cmd
}
