package circulation

import (
	"slices"
	"time"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/catalog"
)

type loanKey struct{ book, user string }

// applyLog rebuilds loan state on books and accounts from the record log,
// in place. A (book, account) pair with no record at all keeps its stored
// state, so loans made before records existed still count. It reports
// whether any book or account changed.
func applyLog(books []catalog.Book, accts []accounts.Account, recs []Record) (booksChanged, accountsChanged bool) {
	logged := make(map[loanKey]bool)
	open := make(map[loanKey]bool)
	loggedBooks := make(map[string]bool)
	onLoan := make(map[string]int)
	heldBy := make(map[string][]string)

	for _, r := range recs {
		k := loanKey{r.BookID, r.UserID}
		logged[k] = true
		loggedBooks[r.BookID] = true
		if r.Active() && !open[k] {
			open[k] = true
			onLoan[r.BookID]++
			heldBy[r.UserID] = append(heldBy[r.UserID], r.BookID)
		}
	}

	legacy := make(map[string]int)
	for i := range accts {
		a := &accts[i]
		held := []string{}
		for _, id := range a.BorrowedBooks {
			if !logged[loanKey{id, a.ID}] && !slices.Contains(held, id) {
				held = append(held, id)
				legacy[id]++
			}
		}
		for _, id := range heldBy[a.ID] {
			if !slices.Contains(held, id) {
				held = append(held, id)
			}
		}
		if !slices.Equal(held, a.BorrowedBooks) {
			a.BorrowedBooks = held
			accountsChanged = true
		}
	}

	for i := range books {
		b := books[i]
		if !loggedBooks[b.ID] {
			continue
		}
		avail := max(0, b.Copies-onLoan[b.ID]-legacy[b.ID])
		next := b
		next.AvailableCopies = avail
		next = project(next, recs)
		if next.AvailableCopies != b.AvailableCopies || next.BorrowedBy != b.BorrowedBy || !sameTime(next.DueDate, b.DueDate) {
			books[i] = next
			booksChanged = true
		}
	}
	return booksChanged, accountsChanged
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
