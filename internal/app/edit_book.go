package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/catalog"
)

var editableFields = []string{
	"title", "author", "isbn", "category", "description", "year",
	"publisher", "pages", "language", "cover", "copies", "branch",
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func newBooksEditCmd() *cobra.Command {
	var (
		b      catalog.Book
		copies int
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a catalog entry",
		Long: `Edit a book's metadata, copy count or branch. Only the flags given are
changed; loans, ratings and reviews are kept.

Copies cannot drop below the number currently on loan.

Examples:
  libractl books edit book-1 --title "To Kill a Mockingbird (50th Anniversary)"
  libractl books edit book-4 --copies 6 --branch branch-2`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeBook,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !anyChanged(cmd, editableFields...) {
				return fmt.Errorf("nothing to change; pass at least one flag")
			}
			ctx := commandContext(cmd)
			book, err := desk().Book(ctx, args[0])
			if err != nil {
				return err
			}

			updated := book
			overlay(cmd, &updated, b)
			if cmd.Flags().Changed("isbn") {
				updated.ISBN = b.ISBN
			}
			if cmd.Flags().Changed("branch") {
				updated.Branch = b.Branch
			}
			if cmd.Flags().Changed("copies") {
				if err := updated.Resize(copies); err != nil {
					return err
				}
			}
			if err := catalog.Validate(updated); err != nil {
				return err
			}
			updated.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

			res, err := books().Save(ctx, updated)
			if err != nil {
				return err
			}
			remoteWarning("write of the book", res.RemoteErr)
			ok("Updated %s: %s", updated.ID, updated.Title)
			if updated.Copies != book.Copies {
				fmt.Printf("  copies %d -> %d, %d available\n", book.Copies, updated.Copies, updated.AvailableCopies)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&b.Title, "title", "", "Title")
	cmd.Flags().StringVar(&b.Author, "author", "", "Author")
	cmd.Flags().StringVar(&b.ISBN, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&b.Category, "category", "", "Category")
	cmd.Flags().StringVar(&b.Description, "description", "", "Description")
	cmd.Flags().StringVar(&b.PublishedYear, "year", "", "Publication year")
	cmd.Flags().StringVar(&b.Publisher, "publisher", "", "Publisher")
	cmd.Flags().IntVar(&b.Pages, "pages", 0, "Page count")
	cmd.Flags().StringVar(&b.Language, "language", "", "Language")
	cmd.Flags().StringVar(&b.CoverImage, "cover", "", "Cover image URL")
	cmd.Flags().IntVar(&copies, "copies", 0, "Number of copies held")
	cmd.Flags().StringVar(&b.Branch, "branch", "", "Holding branch id")
	return cmd
}
