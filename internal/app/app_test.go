package app

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/circulation"
	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/migrate"
)

// setupEnv points config and data at temp dirs and returns the local
// store directory.
func setupEnv(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("LIBRACTL_CONFIG", filepath.Join(t.TempDir(), "config.yml"))
	t.Setenv("LIBRACTL_DATA_DIR", dataDir)
	return filepath.Join(dataDir, "store")
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(append([]string{"--offline", "--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	if closeStores != nil {
		closeStores()
		closeStores = nil
	}
	return err
}

func mustRun(t *testing.T, args ...string) {
	t.Helper()
	if err := run(t, args...); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
}

func openStore(t *testing.T, dir string) localstore.KV {
	t.Helper()
	s, err := localstore.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func bookByID(t *testing.T, kv localstore.KV, id string) catalog.Book {
	t.Helper()
	all, err := localstore.ReadCollection[catalog.Book](context.Background(), kv, localstore.KeyBooks)
	if err != nil {
		t.Fatal(err)
	}
	b := catalog.ByID(all, id)
	if b == nil {
		t.Fatalf("book %s missing", id)
	}
	return *b
}

func TestBorrowReturnFlow(t *testing.T) {
	dir := setupEnv(t)
	mustRun(t, "init")

	mustRun(t, "borrow", "book-1", "user-1")
	kv := openStore(t, dir)
	if got := bookByID(t, kv, "book-1").AvailableCopies; got != 4 {
		t.Errorf("after borrow availableCopies = %d, want 4", got)
	}

	mustRun(t, "loans", "user-1")
	mustRun(t, "fine")

	mustRun(t, "return", "book-1", "user@library.com", "--condition", "excellent")
	if got := bookByID(t, kv, "book-1").AvailableCopies; got != 5 {
		t.Errorf("after return availableCopies = %d, want 5", got)
	}

	recs, err := localstore.ReadCollection[circulation.Record](context.Background(), kv, localstore.KeyBorrowingRecords)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Status != circulation.StatusReturned {
		t.Errorf("records = %+v", recs)
	}
	mustRun(t, "history")
}

func TestBorrowErrors(t *testing.T) {
	setupEnv(t)
	mustRun(t, "init")

	if err := run(t, "borrow", "book-404", "user-1"); !errors.Is(err, circulation.ErrBookNotFound) {
		t.Errorf("unknown book: err = %v", err)
	}
	if err := run(t, "borrow", "book-1", "user-1", "--purpose", "other"); !errors.Is(err, circulation.ErrInvalid) {
		t.Errorf("other without notes: err = %v", err)
	}
	if err := run(t, "return", "book-1", "user-2"); !errors.Is(err, circulation.ErrNotBorrowed) {
		t.Errorf("return without loan: err = %v", err)
	}
}

func TestUsersCommands(t *testing.T) {
	dir := setupEnv(t)
	mustRun(t, "init")

	mustRun(t, "users", "add", "--name", "Ada Lovelace", "--email", "ada@example.com")
	if err := run(t, "users", "add", "--name", "Ada Again", "--email", "ADA@example.com"); !errors.Is(err, accounts.ErrDuplicateEmail) {
		t.Errorf("duplicate email: err = %v", err)
	}

	mustRun(t, "borrow", "book-1", "user-2")
	if err := run(t, "users", "delete", "user-2", "--yes"); !errors.Is(err, accounts.ErrHoldsBooks) {
		t.Errorf("delete with loans: err = %v", err)
	}
	mustRun(t, "users", "delete", "ada@example.com", "--yes")

	all, err := localstore.ReadCollection[accounts.Account](context.Background(), openStore(t, dir), localstore.KeyUsers)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("accounts = %d, want 3", len(all))
	}
	mustRun(t, "users", "list", "sarah")
}

func TestBooksCommands(t *testing.T) {
	dir := setupEnv(t)
	mustRun(t, "init")

	mustRun(t, "books", "add", "--title", "Dune", "--author", "Frank Herbert", "--copies", "2")
	if err := run(t, "books", "add", "--author", "Nobody"); !errors.Is(err, catalog.ErrInvalid) {
		t.Errorf("missing title: err = %v", err)
	}
	mustRun(t, "books", "list", "dune")
	mustRun(t, "books", "show", "book-1")
	mustRun(t, "books", "review", "book-1", "--user", "user-2", "--rating", "3", "--text", "fine")

	kv := openStore(t, dir)
	if got := bookByID(t, kv, "book-1").Ratings; len(got) != 6 || got[5] != 3 {
		t.Errorf("ratings = %v", got)
	}

	export := filepath.Join(t.TempDir(), "catalog.yml")
	mustRun(t, "books", "export", export)
	mustRun(t, "books", "delete", "book-1", "--yes")
	mustRun(t, "books", "import", export)
	if bookByID(t, kv, "book-1").Title != "To Kill a Mockingbird" {
		t.Error("import did not restore book-1")
	}

	mustRun(t, "borrow", "book-1", "user-1")
	if err := run(t, "books", "delete", "book-1", "--yes"); err == nil {
		t.Error("deleting a book on loan should fail")
	}
}

func TestBooksEdit(t *testing.T) {
	dir := setupEnv(t)
	mustRun(t, "init")
	mustRun(t, "books", "review", "book-1", "--user", "user-2", "--rating", "4")
	mustRun(t, "borrow", "book-1", "user-1")
	mustRun(t, "borrow", "book-1", "user-2")

	mustRun(t, "books", "edit", "book-1", "--title", "Mockingbird", "--copies", "3", "--branch", "branch-2")
	kv := openStore(t, dir)
	b := bookByID(t, kv, "book-1")
	if b.Title != "Mockingbird" || b.Author != "Harper Lee" || b.Branch != "branch-2" {
		t.Errorf("edited book = %+v", b)
	}
	if b.Copies != 3 || b.AvailableCopies != 1 {
		t.Errorf("copies = %d, available = %d; want 3, 1", b.Copies, b.AvailableCopies)
	}
	if b.BorrowedBy == "" || len(b.Ratings) != 6 {
		t.Errorf("edit dropped loan or review state: %+v", b)
	}

	if err := run(t, "books", "edit", "book-1", "--copies", "1"); !errors.Is(err, catalog.ErrCopiesOnLoan) {
		t.Errorf("copies below loans: err = %v", err)
	}
	if err := run(t, "books", "edit", "book-1", "--title", ""); !errors.Is(err, catalog.ErrInvalid) {
		t.Errorf("empty title: err = %v", err)
	}
	if err := run(t, "books", "edit", "book-1"); err == nil {
		t.Error("edit without flags should fail")
	}
	if err := run(t, "books", "edit", "book-404", "--title", "X"); !errors.Is(err, circulation.ErrBookNotFound) {
		t.Errorf("unknown book: err = %v", err)
	}
	if got := bookByID(t, kv, "book-1"); got.Copies != 3 || got.Title != "Mockingbird" {
		t.Errorf("failed edits changed the book: %+v", got)
	}
}

func TestSettingsCommands(t *testing.T) {
	dir := setupEnv(t)
	mustRun(t, "init")
	mustRun(t, "settings", "set", "loanDuration", "21")
	if err := run(t, "settings", "set", "finePerDay", "lots"); err == nil {
		t.Error("non-numeric fine accepted")
	}
	mustRun(t, "settings", "show")

	s, _, err := localstore.ReadObject(context.Background(), openStore(t, dir), localstore.KeySettings, circulation.Settings{})
	if err != nil {
		t.Fatal(err)
	}
	if s.LoanDuration != 21 || s.FinePerDay != 0.5 {
		t.Errorf("settings = %+v", s)
	}
}

func TestOfflineSyncAndMigrate(t *testing.T) {
	setupEnv(t)
	mustRun(t, "init")
	mustRun(t, "sync")
	if err := run(t, "migrate"); !errors.Is(err, migrate.ErrNoRemote) {
		t.Errorf("migrate offline: err = %v", err)
	}
}

func TestResetRequiresConfirmation(t *testing.T) {
	dir := setupEnv(t)
	mustRun(t, "init")
	mustRun(t, "books", "add", "--title", "Extra", "--author", "Someone")

	if err := run(t, "reset"); err == nil {
		t.Error("reset without --yes should be refused when not on a terminal")
	}
	mustRun(t, "reset", "--yes")

	all, err := localstore.ReadCollection[catalog.Book](context.Background(), openStore(t, dir), localstore.KeyBooks)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("after reset %d books, want 1", len(all))
	}
}

func TestVersion(t *testing.T) {
	setupEnv(t)
	SetVersion("1.2.3")
	defer SetVersion("dev")
	mustRun(t, "version")
}

func TestCompletion(t *testing.T) {
	setupEnv(t)
	mustRun(t, "init")
	cmd := &cobra.Command{}

	got, dir := completeLoan(cmd, nil, "book-1")
	if dir != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("directive = %v", dir)
	}
	if !slices.Contains(got, "book-1\tTo Kill a Mockingbird") {
		t.Errorf("book candidates = %v", got)
	}

	got, _ = completeLoan(cmd, []string{"book-1"}, "SAR")
	if !slices.Equal(got, []string{"sarah@example.com\tSarah Bookworm"}) {
		t.Errorf("account candidates = %v", got)
	}

	got, _ = completeLoan(cmd, []string{"book-1", "user-1"}, "")
	if len(got) != 0 {
		t.Errorf("third argument candidates = %v", got)
	}

	var buf bytes.Buffer
	root := newRootCmd()
	root.SetOut(&buf)
	root.SetArgs([]string{"completion", "bash"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "libractl") {
		t.Error("bash completion script does not mention libractl")
	}
	if err := run(t, "completion", "tcsh"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}
