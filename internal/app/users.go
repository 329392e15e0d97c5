package app

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/accounts"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage patrons and staff",
	}
	cmd.AddCommand(newUsersListCmd(), newUsersAddCmd(), newUsersDeleteCmd())
	return cmd
}

// resolveAccount finds an account by id or email.
func resolveAccount(cmd *cobra.Command, ref string) (*accounts.Account, error) {
	res, err := users().Load(commandContext(cmd))
	if err != nil {
		return nil, err
	}
	remoteWarning("read of accounts", res.RemoteErr)
	a := accounts.Resolve(res.Records, ref)
	if a == nil {
		return nil, fmt.Errorf("account %q not found", ref)
	}
	return a, nil
}

func newUsersListCmd() *cobra.Command {
	var (
		staffOnly bool
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "list [search]",
		Short: "List accounts, optionally matching a name, email or card number",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := users().Load(commandContext(cmd))
			if err != nil {
				return err
			}
			remoteWarning("read of accounts", res.RemoteErr)

			term := ""
			if len(args) > 0 {
				term = args[0]
			}
			matched := []accounts.Account{}
			for _, a := range accounts.Search(res.Records, term) {
				if !staffOnly || a.IsAdmin {
					matched = append(matched, a)
				}
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(matched)
			}
			if len(matched) == 0 {
				warn("No accounts match")
				return nil
			}
			header("%d accounts", len(matched))
			for _, a := range matched {
				role := "patron"
				card := a.LibraryCardNumber
				if a.IsAdmin {
					role = a.Role
					if role == "" {
						role = "staff"
					}
					if a.StaffID != "" {
						card = a.StaffID
					}
				}
				loans := ""
				if n := len(a.BorrowedBooks); n > 0 {
					loans = color.YellowString(fmt.Sprintf("%d on loan", n))
				}
				fmt.Printf("  %-12s %-22s %-28s %s %s\n",
					color.CyanString(a.ID), a.Name, a.Email, color.HiBlackString(role+" "+card), loans)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&staffOnly, "staff", false, "Only staff accounts")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newUsersAddCmd() *cobra.Command {
	var (
		a     accounts.Account
		staff bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a patron or staff member",
		Long: `Register an account. Patrons get a library card number (LIB-xxxxx),
staff a staff id (STAFF-xxxxx).

Examples:
  libractl users add --name "Ada Lovelace" --email ada@example.com --branch branch-2
  libractl users add --staff --role "Head Librarian" --name "Grace" --email grace@library.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			coll := users()
			res, err := coll.Load(ctx)
			if err != nil {
				return err
			}
			remoteWarning("read of accounts", res.RemoteErr)

			var acct accounts.Account
			if staff {
				acct, err = accounts.NewStaff(a, time.Now())
			} else {
				acct, err = accounts.NewPatron(a, time.Now())
			}
			if err != nil {
				return err
			}
			if err := accounts.CheckUnique(res.Records, acct); err != nil {
				return err
			}

			saved, err := coll.Save(ctx, acct)
			if err != nil {
				return err
			}
			remoteWarning("write of the account", saved.RemoteErr)
			id := acct.LibraryCardNumber
			if staff {
				id = acct.StaffID
			}
			ok("Registered %s (%s, %s)", acct.Name, acct.ID, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&a.Name, "name", "", "Full name (required)")
	cmd.Flags().StringVar(&a.Email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&a.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&a.Address, "address", "", "Postal address")
	cmd.Flags().StringVar(&a.Branch, "branch", "branch-1", "Home branch id")
	cmd.Flags().StringVar(&a.Role, "role", "", "Staff role (with --staff)")
	cmd.Flags().BoolVar(&staff, "staff", false, "Register a staff member")
	return cmd
}

func newUsersDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:               "delete <id|email>",
		Short:             "Remove an account that holds no books",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeAccount,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			a, err := desk().Account(ctx, args[0])
			if err != nil {
				return err
			}
			if err := accounts.CanDelete(a); err != nil {
				return err
			}
			if !confirm(yes, "Delete %s <%s>?", a.Name, a.Email) {
				return fmt.Errorf("delete cancelled (use --yes to skip the prompt)")
			}
			res, err := users().Delete(ctx, a)
			if err != nil {
				return err
			}
			remoteWarning("delete", res.RemoteErr)
			ok("Deleted %s", a.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
