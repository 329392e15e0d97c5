package accounts_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/remote"
)

var now = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func sample() []accounts.Account {
	return []accounts.Account{
		{ID: "admin-1", Name: "Admin User", Email: "admin@library.com", IsAdmin: true, LibraryCardNumber: "ADMIN-001"},
		{ID: "user-1", Name: "John Reader", Email: "user@library.com", LibraryCardNumber: "LIB-10042", BorrowedBooks: []string{"book-1"}},
		{ID: "user-2", Name: "Sarah Bookworm", Email: "Sarah@Example.com ", LibraryCardNumber: "LIB-10043"},
	}
}

func TestDedupKey(t *testing.T) {
	a := accounts.Account{Email: "  Sarah@Example.COM "}
	assert.Equal(t, "sarah@example.com", a.DedupKey())
}

func TestNewPatron(t *testing.T) {
	a, err := accounts.NewPatron(accounts.Account{Name: "Ada", Email: "ada@example.com"}, now)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^LIB-[1-9]\d{4}$`), a.LibraryCardNumber)
	assert.Equal(t, "2026-03-04", a.RegisteredDate)
	assert.False(t, a.IsAdmin)
	assert.NotNil(t, a.BorrowedBooks)
	assert.NotEmpty(t, a.ID)
}

func TestNewStaff(t *testing.T) {
	a, err := accounts.NewStaff(accounts.Account{Name: "Lin", Email: "lin@library.com"}, now)
	require.NoError(t, err)
	assert.True(t, a.IsAdmin)
	assert.Equal(t, "Librarian", a.Role)
	assert.Regexp(t, regexp.MustCompile(`^STAFF-[1-9]\d{4}$`), a.StaffID)
}

func TestValidate(t *testing.T) {
	_, err := accounts.NewPatron(accounts.Account{Email: "x@example.com"}, now)
	assert.ErrorIs(t, err, accounts.ErrInvalid)

	_, err = accounts.NewPatron(accounts.Account{Name: "X", Email: "not-an-email"}, now)
	assert.ErrorIs(t, err, accounts.ErrInvalid)
}

func TestCanDelete(t *testing.T) {
	all := sample()
	assert.True(t, errors.Is(accounts.CanDelete(all[1]), accounts.ErrHoldsBooks))
	assert.NoError(t, accounts.CanDelete(all[2]))
}

func TestCheckUnique(t *testing.T) {
	all := sample()
	err := accounts.CheckUnique(all, accounts.Account{ID: "new", Email: "SARAH@example.com"})
	assert.ErrorIs(t, err, accounts.ErrDuplicateEmail)
	assert.NoError(t, accounts.CheckUnique(all, all[2]))
}

func TestResolve(t *testing.T) {
	all := sample()
	require.NotNil(t, accounts.Resolve(all, "user-1"))
	a := accounts.Resolve(all, "sarah@example.com")
	require.NotNil(t, a)
	assert.Equal(t, "user-2", a.ID)
	assert.Nil(t, accounts.Resolve(all, "nobody"))
}

func TestSearch(t *testing.T) {
	all := sample()
	assert.Len(t, accounts.Search(all, ""), 3)
	assert.Len(t, accounts.Search(all, "reader"), 1)
	assert.Len(t, accounts.Search(all, "LIB-1004"), 2)
	assert.Len(t, accounts.Search(all, "library.com"), 2)
	assert.Empty(t, accounts.Search(all, "zzz"))
}

func TestBorrowedBooks(t *testing.T) {
	a := accounts.Account{}
	a.AddBook("book-1")
	a.AddBook("book-1")
	a.AddBook("book-2")
	assert.Equal(t, []string{"book-1", "book-2"}, a.BorrowedBooks)
	assert.True(t, a.HasBook("book-2"))

	a.RemoveBook("book-1")
	assert.Equal(t, []string{"book-2"}, a.BorrowedBooks)
	assert.False(t, a.HasBook("book-1"))
}

func TestRoleRouting(t *testing.T) {
	staff := accounts.Account{IsAdmin: true}
	assert.Equal(t, remote.Staff, accounts.Collection(staff))
	assert.Equal(t, remote.Users, accounts.Collection(accounts.Account{}))

	assert.True(t, accounts.TagRole(accounts.Account{}, remote.Staff).IsAdmin)
	assert.False(t, accounts.TagRole(staff, remote.Users).IsAdmin)
}
