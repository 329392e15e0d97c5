package circulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/logging"
	"github.com/blackwell-systems/libractl/internal/remote"
)

var (
	// ErrBookNotFound is returned when the book id is unknown.
	ErrBookNotFound = errors.New("book not found")
	// ErrAccountNotFound is returned when the account id is unknown.
	ErrAccountNotFound = errors.New("account not found")
	// ErrUnavailable is returned when no copy is left to lend.
	ErrUnavailable = errors.New("no copies available")
	// ErrAlreadyBorrowed is returned when the account already holds the book.
	ErrAlreadyBorrowed = errors.New("book already borrowed by this account")
	// ErrNotBorrowed is returned when returning a book the account does not hold.
	ErrNotBorrowed = errors.New("book is not borrowed by this account")
	// ErrConflict is returned when another session changed the book first.
	ErrConflict = errors.New("book changed by another session; reload and retry")
	// ErrInvalid wraps form validation failures.
	ErrInvalid = errors.New("invalid form")
)

var validate = validator.New()

// Outcome is the result of a successful transition.
type Outcome struct {
	Book    catalog.Book
	Account accounts.Account
	Record  Record
	// Fine is the overdue fine on return, informational only.
	Fine float64
	// Warnings report remote mirror failures; the local change applied.
	Warnings []string
}

// Loan is an active record joined with its book.
type Loan struct {
	Record  Record
	Book    *catalog.Book
	Fine    float64
	Overdue bool
}

// Desk applies borrow and return transitions. Transitions on one Desk
// are serialized.
type Desk struct {
	repo Repository
	now  func() time.Time
	log  *zap.Logger
	mu   sync.Mutex
}

// NewDesk creates a desk over repo.
func NewDesk(repo Repository, log *zap.Logger) *Desk {
	return &Desk{repo: repo, now: time.Now, log: logging.OrNop(log)}
}

// WithClock overrides the time source; used by tests.
func (d *Desk) WithClock(now func() time.Time) *Desk {
	d.now = now
	return d
}

func validateForm(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "oneof":
				msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
			default:
				msgs = append(msgs, field+" is required")
			}
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

func findBook(books []catalog.Book, id string) (catalog.Book, error) {
	if b := catalog.ByID(books, id); b != nil {
		return *b, nil
	}
	return catalog.Book{}, fmt.Errorf("%w: %s", ErrBookNotFound, id)
}

func findAccount(all []accounts.Account, ref string) (accounts.Account, error) {
	if a := accounts.Resolve(all, ref); a != nil {
		return *a, nil
	}
	return accounts.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, ref)
}

// activeRecord returns the most recent open record for (bookID, userID).
func activeRecord(recs []Record, bookID, userID string) (Record, bool) {
	var (
		best  Record
		found bool
	)
	for _, r := range recs {
		if !r.Active() || r.BookID != bookID || r.UserID != userID {
			continue
		}
		if !found || r.BorrowDate.After(best.BorrowDate) {
			best, found = r, true
		}
	}
	return best, found
}

// project recomputes the book's borrower fields from the record log.
func project(b catalog.Book, recs []Record) catalog.Book {
	var (
		latest Record
		found  bool
	)
	for _, r := range recs {
		if !r.Active() || r.BookID != b.ID {
			continue
		}
		if !found || r.BorrowDate.After(latest.BorrowDate) {
			latest, found = r, true
		}
	}
	if found {
		due := latest.DueDate
		b.BorrowedBy = latest.UserID
		b.DueDate = &due
	} else {
		b.BorrowedBy = ""
		b.DueDate = nil
	}
	b.Normalize()
	return b
}

func replaceRecord(recs []Record, rec Record) []Record {
	out := make([]Record, 0, len(recs)+1)
	replaced := false
	for _, r := range recs {
		if r.ID == rec.ID {
			out = append(out, rec)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, rec)
	}
	return out
}

// Borrow lends one copy of bookID to account (id or email).
func (d *Desk) Borrow(ctx context.Context, bookID, account string, intent Intent) (Outcome, error) {
	if intent.Purpose == "" {
		intent.Purpose = PurposePersonal
	}
	if err := validateForm(intent); err != nil {
		return Outcome{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	snap, err := d.repo.Snapshot(ctx)
	if err != nil {
		return Outcome{}, err
	}
	book, err := findBook(snap.Books, bookID)
	if err != nil {
		return Outcome{}, err
	}
	acct, err := findAccount(snap.Accounts, account)
	if err != nil {
		return Outcome{}, err
	}
	if book.AvailableCopies <= 0 {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnavailable, book.Title)
	}
	if _, open := activeRecord(snap.Records, book.ID, acct.ID); open {
		return Outcome{}, fmt.Errorf("%w: %q", ErrAlreadyBorrowed, book.Title)
	}

	now := d.now()
	rec := Record{
		ID:         "record-" + uuid.NewString(),
		BookID:     book.ID,
		UserID:     acct.ID,
		BorrowDate: now.UTC(),
		DueDate:    DueDate(now, snap.Settings).UTC(),
		Status:     StatusBorrowed,
		Purpose:    intent.Purpose,
		Notes:      intent.Notes,
		CreatedAt:  now.UTC().Format(time.RFC3339),
	}

	next := book
	next.AvailableCopies--
	next.UpdatedAt = rec.CreatedAt
	next = project(next, append(clone(snap.Records), rec))

	nextAcct := acct
	nextAcct.BorrowedBooks = append([]string(nil), acct.BorrowedBooks...)
	nextAcct.AddBook(book.ID)

	out := Outcome{Warnings: snap.Warnings}
	if len(nextAcct.BorrowedBooks) > snap.Settings.MaxBooksPerUser {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s now holds %d books (limit %d)",
			acct.Email, len(nextAcct.BorrowedBooks), snap.Settings.MaxBooksPerUser))
	}

	if err := d.mirror(ctx, &out, &next, &nextAcct, &rec); err != nil {
		return Outcome{}, err
	}
	if err := d.commit(ctx, book, acct, next, nextAcct, rec); err != nil {
		return Outcome{}, err
	}

	d.log.Info("Book borrowed",
		zap.String("book", book.ID), zap.String("account", acct.ID),
		zap.String("record", rec.ID), zap.Time("due", rec.DueDate))
	out.Book, out.Account, out.Record = next, nextAcct, rec
	return out, nil
}

// Return closes the account's open loan of bookID. Legacy loans that only
// exist as book.borrowedBy or account.borrowedBooks are closed with a
// synthesized record.
func (d *Desk) Return(ctx context.Context, bookID, account string, form ReturnForm) (Outcome, error) {
	if form.Condition == "" {
		form.Condition = ConditionGood
	}
	if err := validateForm(form); err != nil {
		return Outcome{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	snap, err := d.repo.Snapshot(ctx)
	if err != nil {
		return Outcome{}, err
	}
	book, err := findBook(snap.Books, bookID)
	if err != nil {
		return Outcome{}, err
	}
	acct, err := findAccount(snap.Accounts, account)
	if err != nil {
		return Outcome{}, err
	}

	now := d.now()
	rec, ok := activeRecord(snap.Records, book.ID, acct.ID)
	if !ok {
		if book.BorrowedBy != acct.ID && !acct.HasBook(book.ID) {
			return Outcome{}, fmt.Errorf("%w: %q", ErrNotBorrowed, book.Title)
		}
		rec = legacyRecord(book, acct, now, snap.Settings)
		d.log.Info("Closing loan without a borrowing record",
			zap.String("book", book.ID), zap.String("account", acct.ID))
	}

	returned := now.UTC()
	out := Outcome{Warnings: snap.Warnings}
	out.Fine = CalculateFine(rec.DueDate, now, snap.Settings)

	rec.Status = StatusReturned
	rec.ReturnDate = &returned
	rec.Condition = form.Condition
	rec.Feedback = form.Feedback
	rec.Fine = out.Fine

	next := book
	next.AvailableCopies++
	next.UpdatedAt = returned.Format(time.RFC3339)
	next = project(next, replaceRecord(snap.Records, rec))

	nextAcct := acct
	nextAcct.BorrowedBooks = append([]string(nil), acct.BorrowedBooks...)
	nextAcct.RemoveBook(book.ID)

	if err := d.mirror(ctx, &out, &next, &nextAcct, &rec); err != nil {
		return Outcome{}, err
	}
	if err := d.commit(ctx, book, acct, next, nextAcct, rec); err != nil {
		return Outcome{}, err
	}

	d.log.Info("Book returned",
		zap.String("book", book.ID), zap.String("account", acct.ID),
		zap.String("record", rec.ID), zap.Float64("fine", out.Fine))
	out.Book, out.Account, out.Record = next, nextAcct, rec
	return out, nil
}

func legacyRecord(b catalog.Book, a accounts.Account, now time.Time, s Settings) Record {
	due := now.UTC()
	if b.BorrowedBy == a.ID && b.DueDate != nil {
		due = b.DueDate.UTC()
	}
	return Record{
		ID:         "record-" + uuid.NewString(),
		BookID:     b.ID,
		UserID:     a.ID,
		BorrowDate: due.AddDate(0, 0, -s.LoanDuration),
		DueDate:    due,
		Status:     StatusBorrowed,
		CreatedAt:  now.UTC().Format(time.RFC3339),
	}
}

// mirror pushes the transition to the remote store. The book goes first
// and conditionally: a conflict aborts before anything is written.
// Other remote failures become warnings.
func (d *Desk) mirror(ctx context.Context, out *Outcome, book *catalog.Book, acct *accounts.Account, rec *Record) error {
	pushed, err := d.repo.PushBook(ctx, *book)
	switch {
	case errors.Is(err, remote.ErrConflict):
		return fmt.Errorf("%w: %s", ErrConflict, book.ID)
	case err != nil:
		out.Warnings = append(out.Warnings, fmt.Sprintf("book not mirrored: %v", err))
	default:
		*book = pushed
	}

	if r, err := d.repo.PushRecord(ctx, *rec); err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("borrowing record not mirrored: %v", err))
	} else {
		*rec = r
	}

	if a, err := d.repo.PushAccount(ctx, *acct); err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("account not mirrored: %v", err))
	} else {
		*acct = a
	}
	return nil
}

// commit writes the local side. If that fails the remote side is put
// back so neither store records a transition the caller saw fail.
func (d *Desk) commit(ctx context.Context, prevBook catalog.Book, prevAcct accounts.Account, book catalog.Book, acct accounts.Account, rec Record) error {
	err := d.repo.Commit(ctx, Change{Book: book, Account: acct, Record: rec})
	if err == nil {
		return nil
	}

	if book.Version > prevBook.Version {
		prevBook.RemoteID, prevBook.Version = book.RemoteID, book.Version
		if _, cerr := d.repo.PushBook(ctx, prevBook); cerr != nil {
			d.log.Warn("Could not restore remote book", zap.String("book", book.ID), zap.Error(cerr))
		}
	}
	if acct.Version > prevAcct.Version {
		if _, cerr := d.repo.PushAccount(ctx, prevAcct); cerr != nil {
			d.log.Warn("Could not restore remote account", zap.String("account", acct.ID), zap.Error(cerr))
		}
	}
	if rec.Status == StatusBorrowed {
		if cerr := d.repo.Unpush(ctx, rec); cerr != nil {
			d.log.Warn("Could not remove remote record", zap.String("record", rec.ID), zap.Error(cerr))
		}
	}
	return fmt.Errorf("saving transition locally: %w", err)
}

// Active lists the open loans of account (all accounts when empty), with
// the fine accrued so far.
func (d *Desk) Active(ctx context.Context, account string) ([]Loan, []string, error) {
	snap, err := d.repo.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	userID, err := d.resolve(snap, account)
	if err != nil {
		return nil, nil, err
	}

	now := d.now()
	loans := []Loan{}
	for _, r := range snap.Records {
		if !r.Active() || (userID != "" && r.UserID != userID) {
			continue
		}
		l := Loan{Record: r, Fine: CalculateFine(r.DueDate, now, snap.Settings), Overdue: now.After(r.DueDate)}
		if b := catalog.ByID(snap.Books, r.BookID); b != nil {
			bc := *b
			l.Book = &bc
		}
		loans = append(loans, l)
	}
	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].Record.DueDate.Before(loans[j].Record.DueDate)
	})
	return loans, snap.Warnings, nil
}

// History lists every record of account (all accounts when empty),
// newest first.
func (d *Desk) History(ctx context.Context, account string) ([]Record, []string, error) {
	snap, err := d.repo.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	userID, err := d.resolve(snap, account)
	if err != nil {
		return nil, nil, err
	}

	out := []Record{}
	for _, r := range snap.Records {
		if userID == "" || r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BorrowDate.After(out[j].BorrowDate)
	})
	return out, snap.Warnings, nil
}

// Book returns the book with its loan fields rebuilt from the record log.
func (d *Desk) Book(ctx context.Context, id string) (catalog.Book, error) {
	snap, err := d.repo.Snapshot(ctx)
	if err != nil {
		return catalog.Book{}, err
	}
	return findBook(snap.Books, id)
}

// Account returns the account (id or email) with borrowedBooks rebuilt
// from the record log.
func (d *Desk) Account(ctx context.Context, ref string) (accounts.Account, error) {
	snap, err := d.repo.Snapshot(ctx)
	if err != nil {
		return accounts.Account{}, err
	}
	return findAccount(snap.Accounts, ref)
}

func (d *Desk) resolve(snap Snapshot, account string) (string, error) {
	if account == "" {
		return "", nil
	}
	a, err := findAccount(snap.Accounts, account)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}
