package app

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/circulation"
)

func newBorrowCmd() *cobra.Command {
	var (
		purpose string
		notes   string
	)

	cmd := &cobra.Command{
		Use:   "borrow <book-id> <account>",
		Short: "Lend a copy of a book to an account (id or email)",
		Long: `Lend one copy. The loan runs for the configured loan duration.
Purpose is one of personal, academic, research or other; other needs --notes.

Examples:
  libractl borrow book-3 user-1
  libractl borrow book-3 sarah@example.com --purpose research`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeLoan,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := desk().Borrow(commandContext(cmd), args[0], args[1], circulation.Intent{
				Purpose: circulation.Purpose(purpose),
				Notes:   notes,
			})
			if err != nil {
				return err
			}
			printWarnings(out.Warnings)
			ok("%s lent to %s, due %s", out.Book.Title, out.Account.Name, formatDate(&out.Record.DueDate))
			printField("record", out.Record.ID)
			printField("copies", availability(out.Book))
			return nil
		},
	}

	cmd.Flags().StringVar(&purpose, "purpose", string(circulation.PurposePersonal), "Why the book is borrowed")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes (required when purpose is other)")
	return cmd
}

func newReturnCmd() *cobra.Command {
	var (
		condition string
		feedback  string
	)

	cmd := &cobra.Command{
		Use:   "return <book-id> <account>",
		Short: "Take back a borrowed book",
		Long: `Close a loan. Condition is one of excellent, good, fair, poor or
damaged; poor and damaged need --feedback. Any overdue fine is reported.`,
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeLoan,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := desk().Return(commandContext(cmd), args[0], args[1], circulation.ReturnForm{
				Condition: circulation.Condition(condition),
				Feedback:  feedback,
			})
			if err != nil {
				return err
			}
			printWarnings(out.Warnings)
			ok("%s returned by %s", out.Book.Title, out.Account.Name)
			if out.Fine > 0 {
				printField("overdue fine", color.RedString(formatMoney(out.Fine)))
			}
			printField("copies", availability(out.Book))
			return nil
		},
	}

	cmd.Flags().StringVar(&condition, "condition", string(circulation.ConditionGood), "Condition of the returned book")
	cmd.Flags().StringVar(&feedback, "feedback", "", "Feedback (required for poor or damaged)")
	return cmd
}

func newLoansCmd() *cobra.Command {
	var overdueOnly bool

	cmd := &cobra.Command{
		Use:               "loans [account]",
		Short:             "List open loans, soonest due first",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeAccount,
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, warnings, err := desk().Active(commandContext(cmd), optionalArg(args))
			if err != nil {
				return err
			}
			printWarnings(warnings)

			shown := 0
			for _, l := range loans {
				if overdueOnly && !l.Overdue {
					continue
				}
				printLoan(l)
				shown++
			}
			if shown == 0 {
				ok("No open loans")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&overdueOnly, "overdue", false, "Only overdue loans")
	return cmd
}

func printLoan(l circulation.Loan) {
	title := l.Record.BookID
	if l.Book != nil {
		title = l.Book.Title
	}
	due := "due " + formatDate(&l.Record.DueDate)
	if l.Overdue {
		due = color.RedString("overdue since %s, fine %s", formatDate(&l.Record.DueDate), formatMoney(l.Fine))
	}
	fmt.Printf("  %-10s %-32s %s\n", color.CyanString(l.Record.UserID), title, due)
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "history [account]",
		Short:             "List borrowing records, newest first",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeAccount,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, warnings, err := desk().History(commandContext(cmd), optionalArg(args))
			if err != nil {
				return err
			}
			printWarnings(warnings)
			if len(recs) == 0 {
				ok("No borrowing history")
				return nil
			}
			for _, r := range recs {
				state := color.YellowString("borrowed")
				if r.Status == circulation.StatusReturned {
					state = color.GreenString("returned %s", formatDate(r.ReturnDate))
					if r.Fine > 0 {
						state += color.RedString(" fine %s", formatMoney(r.Fine))
					}
				}
				fmt.Printf("  %s  %-10s %-12s %s\n",
					formatDate(&r.BorrowDate), color.CyanString(r.UserID), r.BookID, state)
			}
			return nil
		},
	}
}

func newFineCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "fine [account]",
		Short:             "Show the fines accrued on open loans",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeAccount,
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, warnings, err := desk().Active(commandContext(cmd), optionalArg(args))
			if err != nil {
				return err
			}
			printWarnings(warnings)

			var (
				total   float64
				overdue int
			)
			for _, l := range loans {
				if !l.Overdue {
					continue
				}
				printLoan(l)
				total += l.Fine
				overdue++
			}
			if overdue == 0 {
				ok("Nothing overdue as of %s", time.Now().Format("2006-01-02"))
				return nil
			}
			printField("total", color.RedString(formatMoney(total)))
			return nil
		},
	}
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
