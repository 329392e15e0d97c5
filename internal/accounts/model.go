// Package accounts holds library patrons and staff.
package accounts

import (
	"strings"

	"github.com/blackwell-systems/libractl/internal/remote"
)

// Account is a patron or staff member as stored under the local "users" key.
type Account struct {
	ID                string   `json:"id"`
	RemoteID          string   `json:"remoteId,omitempty"`
	Version           int64    `json:"version,omitempty"`
	Name              string   `json:"name" validate:"required"`
	Email             string   `json:"email" validate:"required,email"`
	IsAdmin           bool     `json:"isAdmin"`
	Role              string   `json:"role,omitempty"`
	Branch            string   `json:"branch,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	Address           string   `json:"address,omitempty"`
	RegisteredDate    string   `json:"registeredDate,omitempty"`
	LibraryCardNumber string   `json:"libraryCardNumber,omitempty"`
	StaffID           string   `json:"staffId,omitempty"`
	BorrowedBooks     []string `json:"borrowedBooks"`
}

// NormalizeEmail lowercases and trims an address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DedupKey is the normalized email; ids come from different auth
// providers and are not reliable across stores.
func (a Account) DedupKey() string { return NormalizeEmail(a.Email) }

// DocID returns the remote document id.
func (a Account) DocID() string { return a.RemoteID }

// DocVersion returns the remote document version.
func (a Account) DocVersion() int64 { return a.Version }

// WithDoc attaches remote identity.
func (a Account) WithDoc(id string, version int64) Account {
	a.RemoteID = id
	a.Version = version
	if a.ID == "" {
		a.ID = id
	}
	return a
}

// Collection is the remote collection an account lives in.
func Collection(a Account) string {
	if a.IsAdmin {
		return remote.Staff
	}
	return remote.Users
}

// TagRole sets the role flag from the remote collection the account was
// read from.
func TagRole(a Account, collection string) Account {
	switch collection {
	case remote.Staff:
		a.IsAdmin = true
	case remote.Users:
		a.IsAdmin = false
	}
	return a
}

// HasBook reports whether bookID is in the account's borrowed list.
func (a Account) HasBook(bookID string) bool {
	for _, id := range a.BorrowedBooks {
		if id == bookID {
			return true
		}
	}
	return false
}

// AddBook appends bookID once.
func (a *Account) AddBook(bookID string) {
	if !a.HasBook(bookID) {
		a.BorrowedBooks = append(a.BorrowedBooks, bookID)
	}
}

// RemoveBook drops every occurrence of bookID.
func (a *Account) RemoveBook(bookID string) {
	out := make([]string, 0, len(a.BorrowedBooks))
	for _, id := range a.BorrowedBooks {
		if id != bookID {
			out = append(out, id)
		}
	}
	a.BorrowedBooks = out
}
