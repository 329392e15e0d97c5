package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/metadata"
	"github.com/blackwell-systems/libractl/internal/util"
)

func newBooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "books",
		Aliases: []string{"book"},
		Short:   "Browse and manage the catalog",
	}
	cmd.AddCommand(
		newBooksListCmd(),
		newBooksShowCmd(),
		newBooksAddCmd(),
		newBooksLookupCmd(),
		newBooksEditCmd(),
		newBooksDeleteCmd(),
		newBooksExportCmd(),
		newBooksImportCmd(),
		newBooksReviewCmd(),
	)
	return cmd
}

func newBooksListCmd() *cobra.Command {
	var (
		f       catalog.Filter
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List books, optionally filtered",
		Long: `List the catalog. The query matches title, author, ISBN or category
(case-insensitive).

Examples:
  libractl books list
  libractl books list tolkien --available
  libractl books list --category Fiction --branch branch-2 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				f.Search = args[0]
			}
			res, err := books().Load(commandContext(cmd))
			if err != nil {
				return err
			}
			remoteWarning("read of books", res.RemoteErr)

			matched := f.Apply(res.Records)
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(matched)
			}
			if len(matched) == 0 {
				warn("No books match")
				return nil
			}
			header("%d of %d books", len(matched), len(res.Records))
			for _, b := range matched {
				fmt.Printf("  %-14s %s  %s  %s\n",
					color.CyanString(b.ID), b.Title, color.HiBlackString("by "+b.Author), availability(b))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.Category, "category", "", "Only this category")
	cmd.Flags().StringVar(&f.Branch, "branch", "", "Only books held at this branch id")
	cmd.Flags().BoolVar(&f.AvailableOnly, "available", false, "Only books with a copy on the shelf")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newBooksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "show <id>",
		Short:             "Show everything known about a book",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeBook,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			res, err := books().Load(ctx)
			if err != nil {
				return err
			}
			remoteWarning("read of books", res.RemoteErr)
			b := catalog.ByID(res.Records, args[0])
			if b == nil {
				return fmt.Errorf("book %q not found", args[0])
			}

			header("Book: %s", b.ID)
			printField("title", b.Title)
			printField("author", b.Author)
			printField("isbn", b.ISBN)
			printField("category", b.Category)
			printField("published", b.PublishedYear)
			printField("publisher", b.Publisher)
			if b.Pages > 0 {
				printField("pages", fmt.Sprintf("%d", b.Pages))
			}
			printField("language", b.Language)
			printField("branch", branchName(ctx, b.Branch))
			printField("copies", availability(*b))
			if b.BorrowedBy != "" {
				printField("borrowed by", b.BorrowedBy)
				printField("due", formatDate(b.DueDate))
			}
			if len(b.Ratings) > 0 {
				printField("rating", fmt.Sprintf("%.1f (%d ratings)", b.AverageRating(), len(b.Ratings)))
			}
			printField("source", string(b.Source))
			if b.RemoteID != "" {
				printField("remote id", b.RemoteID)
			}
			if b.Description != "" {
				fmt.Println()
				fmt.Println(b.Description)
			}
			if len(b.Reviews) > 0 {
				fmt.Println()
				header("Reviews")
				for _, r := range b.Reviews {
					fmt.Printf("  %s %s  %s\n", strings.Repeat("★", int(r.Rating)), color.HiBlackString(r.UserID+" "+r.Date), r.Text)
				}
			}
			return nil
		},
	}
}

func newBooksAddCmd() *cobra.Command {
	var (
		b      catalog.Book
		lookup bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Long: `Add a book. With --lookup the metadata API is queried by --isbn first
and any flags given override what it returns.

Examples:
  libractl books add --title "Dune" --author "Frank Herbert" --copies 3 --branch branch-1
  libractl books add --isbn 9780441172719 --lookup --copies 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			book := b
			if lookup {
				if b.ISBN == "" {
					return fmt.Errorf("--lookup needs --isbn")
				}
				m, found := meta.LookupISBN(ctx, b.ISBN)
				if !found {
					return fmt.Errorf("no metadata found for ISBN %s", b.ISBN)
				}
				book = catalog.FromMetadata(*m, "")
				book.AvailableCopies = 0
				overlay(cmd, &book, b)
				book.Copies = b.Copies
				book.Branch = b.Branch
				book.Source = catalog.SourceGoogleBooks
			}

			book, err := catalog.New(book, time.Now())
			if err != nil {
				return err
			}
			res, err := books().Save(ctx, book)
			if err != nil {
				return err
			}
			remoteWarning("write of the book", res.RemoteErr)
			ok("Added %s: %s", res.Record.ID, res.Record.Title)
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
	cmd.Flags().IntVar(&b.Copies, "copies", 1, "Number of copies")
	cmd.Flags().StringVar(&b.Branch, "branch", "branch-1", "Holding branch id")
	cmd.Flags().BoolVar(&lookup, "lookup", false, "Pre-fill from the metadata API by --isbn")
	return cmd
}

// overlay copies the explicitly set flags from src onto dst.
func overlay(cmd *cobra.Command, dst *catalog.Book, src catalog.Book) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }
	if set("title") {
		dst.Title = src.Title
	}
	if set("author") {
		dst.Author = src.Author
	}
	if set("category") {
		dst.Category = src.Category
	}
	if set("description") {
		dst.Description = src.Description
	}
	if set("year") {
		dst.PublishedYear = src.PublishedYear
	}
	if set("publisher") {
		dst.Publisher = src.Publisher
	}
	if set("pages") {
		dst.Pages = src.Pages
	}
	if set("language") {
		dst.Language = src.Language
	}
	if set("cover") {
		dst.CoverImage = src.CoverImage
	}
}

func newBooksLookupCmd() *cobra.Command {
	var byISBN bool

	cmd := &cobra.Command{
		Use:   "lookup <query>",
		Short: "Search the public metadata API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			var hits []metadata.BookMetadata
			if byISBN {
				if m, found := meta.LookupISBN(ctx, args[0]); found {
					hits = append(hits, *m)
				}
			} else {
				hits = meta.Search(ctx, args[0])
			}
			if len(hits) == 0 {
				warn("Nothing found for %q", args[0])
				return nil
			}
			for _, m := range hits {
				fmt.Printf("  %s  %s  %s\n", color.CyanString(m.ISBN), m.Title,
					color.HiBlackString(fmt.Sprintf("by %s, %s (%s)", m.Author, m.Publisher, m.PublishedYear)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&byISBN, "isbn", false, "Treat the query as an ISBN")
	return cmd
}

func newBooksDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:               "delete <id>",
		Short:             "Remove a book from the catalog",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeBook,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			b, err := desk().Book(ctx, args[0])
			if err != nil {
				return err
			}
			if n := b.OnLoan(); n > 0 {
				return fmt.Errorf("%q has %d copies on loan; return them first", b.Title, n)
			}
			if !confirm(yes, "Delete %q?", b.Title) {
				return fmt.Errorf("delete cancelled (use --yes to skip the prompt)")
			}
			del, err := books().Delete(ctx, b)
			if err != nil {
				return err
			}
			remoteWarning("delete", del.RemoteErr)
			ok("Deleted %s", b.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newBooksExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.yml|file.json>",
		Short: "Write the catalog to a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := books().Load(commandContext(cmd))
			if err != nil {
				return err
			}
			remoteWarning("read of books", res.RemoteErr)
			if err := catalog.Save(args[0], res.Records); err != nil {
				return err
			}
			sum, err := util.FileDigest(args[0])
			if err != nil {
				return err
			}
			ok("Exported %d books to %s", len(res.Records), args[0])
			printField("checksum", sum.String())
			return nil
		},
	}
}

func newBooksImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yml|file.json>",
		Short: "Merge books from a YAML or JSON file into the catalog",
		Long: `Import books exported with 'books export' (or written by hand). Books
are matched by id: existing entries are replaced, new ones appended.
Invalid entries are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			in, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			sum, err := util.FileDigest(args[0])
			if err != nil {
				return err
			}

			var unique []catalog.Book
			for _, b := range in {
				unique = catalog.Append(unique, b)
			}

			coll := books()
			imported, skipped := 0, 0
			for _, b := range unique {
				b.Normalize()
				if b.ID == "" {
					b.ID = catalog.NewID()
				}
				if err := catalog.Validate(b); err != nil {
					warn("Skipping %q: %v", b.Title, err)
					skipped++
					continue
				}
				res, err := coll.Save(ctx, b)
				if err != nil {
					return err
				}
				remoteWarning("write of "+b.ID, res.RemoteErr)
				imported++
			}
			ok("Imported %d books from %s (sha256 %s)", imported, args[0], sum.Short())
			if skipped > 0 {
				warn("%d entries skipped", skipped)
			}
			return nil
		},
	}
}

func newBooksReviewCmd() *cobra.Command {
	var (
		user   string
		rating float64
		text   string
	)

	cmd := &cobra.Command{
		Use:               "review <id>",
		Short:             "Add a rating and review to a book",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeBook,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rating < 1 || rating > 5 {
				return errors.New("--rating must be between 1 and 5")
			}
			ctx := commandContext(cmd)
			coll := books()
			res, err := coll.Load(ctx)
			if err != nil {
				return err
			}
			b := catalog.ByID(res.Records, args[0])
			if b == nil {
				return fmt.Errorf("book %q not found", args[0])
			}
			acct, err := resolveAccount(cmd, user)
			if err != nil {
				return err
			}

			book := *b
			book.AddReview(catalog.Review{
				UserID: acct.ID,
				Text:   text,
				Rating: rating,
				Date:   time.Now().Format("2006-01-02"),
			})
			book.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
			saved, err := coll.Save(ctx, book)
			if err != nil {
				return err
			}
			remoteWarning("write of the book", saved.RemoteErr)
			ok("Review added; %s now rates %.1f", book.Title, book.AverageRating())
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Reviewer id or email (required)")
	cmd.Flags().Float64Var(&rating, "rating", 0, "Rating from 1 to 5 (required)")
	cmd.Flags().StringVar(&text, "text", "", "Review text")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}
