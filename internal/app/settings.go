package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/circulation"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the loan rules",
	}
	cmd.AddCommand(newSettingsShowCmd(), newSettingsSetCmd())
	return cmd
}

func newSettingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current loan rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := circulation.NewSettingsObject(kv, store, log).Load(commandContext(cmd))
			if err != nil {
				return err
			}
			remoteWarning("read of settings", res.RemoteErr)
			s := res.Value.WithDefaults()
			header("Loan rules")
			printField("loanDuration", fmt.Sprintf("%d days", s.LoanDuration))
			printField("maxBooksPerUser", fmt.Sprintf("%d", s.MaxBooksPerUser))
			printField("finePerDay", formatMoney(s.FinePerDay))
			printField("reservationDuration", fmt.Sprintf("%d days", s.ReservationDuration))
			return nil
		},
	}
}

func newSettingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Change one loan rule",
		Long:      "Keys: loanDuration, maxBooksPerUser, finePerDay, reservationDuration.",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"loanDuration", "maxBooksPerUser", "finePerDay", "reservationDuration"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			obj := circulation.NewSettingsObject(kv, store, log)
			res, err := obj.Load(ctx)
			if err != nil {
				return err
			}
			remoteWarning("read of settings", res.RemoteErr)

			s := res.Value.WithDefaults()
			if err := s.Set(args[0], args[1]); err != nil {
				return err
			}
			saved, err := obj.Save(ctx, s)
			if err != nil {
				return err
			}
			remoteWarning("write of settings", saved.RemoteErr)
			ok("%s set to %s", args[0], args[1])
			return nil
		},
	}
}
