package accounts

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	// ErrHoldsBooks is returned when deleting an account that still has books.
	ErrHoldsBooks = errors.New("account still holds borrowed books")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid account")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

var validate = validator.New()

// Validate checks required fields.
func Validate(a Account) error {
	if err := validate.Struct(a); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			field := strings.ToLower(fe.Field())
			if fe.Tag() == "email" {
				msgs = append(msgs, field+" is not a valid address")
			} else {
				msgs = append(msgs, field+" is required")
			}
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

// CardNumber returns a fresh patron card number (LIB-xxxxx).
func CardNumber() string {
	return fmt.Sprintf("LIB-%d", 10000+rand.IntN(90000))
}

// StaffNumber returns a fresh staff id (STAFF-xxxxx).
func StaffNumber() string {
	return fmt.Sprintf("STAFF-%d", 10000+rand.IntN(90000))
}

// NewPatron registers a patron account.
func NewPatron(a Account, now time.Time) (Account, error) {
	if a.ID == "" {
		a.ID = "user-" + uuid.NewString()
	}
	a.IsAdmin = false
	if a.LibraryCardNumber == "" {
		a.LibraryCardNumber = CardNumber()
	}
	return finish(a, now)
}

// NewStaff registers a staff account. Role defaults to "Librarian".
func NewStaff(a Account, now time.Time) (Account, error) {
	if a.ID == "" {
		a.ID = "staff-" + uuid.NewString()
	}
	a.IsAdmin = true
	if a.Role == "" {
		a.Role = "Librarian"
	}
	if a.StaffID == "" {
		a.StaffID = StaffNumber()
	}
	return finish(a, now)
}

func finish(a Account, now time.Time) (Account, error) {
	a.Email = strings.TrimSpace(a.Email)
	if a.RegisteredDate == "" {
		a.RegisteredDate = now.Format("2006-01-02")
	}
	if a.BorrowedBooks == nil {
		a.BorrowedBooks = []string{}
	}
	if err := Validate(a); err != nil {
		return Account{}, err
	}
	return a, nil
}

// CheckUnique fails when email is already taken by another account.
func CheckUnique(all []Account, a Account) error {
	if other := ByEmail(all, a.Email); other != nil && other.ID != a.ID {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, a.Email)
	}
	return nil
}

// CanDelete rejects accounts that still hold books.
func CanDelete(a Account) error {
	if len(a.BorrowedBooks) > 0 {
		return fmt.Errorf("%w: %s has %d", ErrHoldsBooks, a.Email, len(a.BorrowedBooks))
	}
	return nil
}

// ByID returns the account with id, or nil.
func ByID(all []Account, id string) *Account {
	for i := range all {
		if all[i].ID == id {
			return &all[i]
		}
	}
	return nil
}

// ByEmail returns the account with email (case-insensitive), or nil.
func ByEmail(all []Account, email string) *Account {
	key := NormalizeEmail(email)
	for i := range all {
		if all[i].DedupKey() == key {
			return &all[i]
		}
	}
	return nil
}

// Resolve finds an account by id, then by email.
func Resolve(all []Account, ref string) *Account {
	if a := ByID(all, ref); a != nil {
		return a
	}
	return ByEmail(all, ref)
}

// Search matches name, email or card number, case-insensitively.
func Search(all []Account, term string) []Account {
	term = strings.ToLower(strings.TrimSpace(term))
	out := []Account{}
	for _, a := range all {
		if term == "" ||
			strings.Contains(strings.ToLower(a.Name), term) ||
			strings.Contains(strings.ToLower(a.Email), term) ||
			strings.Contains(strings.ToLower(a.LibraryCardNumber), term) {
			out = append(out, a)
		}
	}
	return out
}
