package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/blackwell-systems/libractl/internal/metadata"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid book")
	// ErrCopiesOnLoan is returned when shrinking a title below the copies
	// currently lent out.
	ErrCopiesOnLoan = errors.New("fewer copies than are on loan")
)

var validate = validator.New()

// Validate checks required fields and the copy-count invariant.
func Validate(b Book) error {
	err := validate.Struct(b)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return strings.ToLower(fe.Field()) + " is required"
	case "gte":
		return fmt.Sprintf("%s must be at least %s", strings.ToLower(fe.Field()), fe.Param())
	case "ltefield":
		return "available copies cannot exceed copies"
	default:
		return fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
}

// NewID returns a fresh catalog id.
func NewID() string {
	return "book-" + uuid.NewString()
}

// New prepares a staff-entered book: assigns an id, fills availability
// and timestamps, and validates it.
func New(b Book, now time.Time) (Book, error) {
	if b.ID == "" {
		b.ID = NewID()
	}
	if b.Copies == 0 {
		b.Copies = 1
	}
	if b.AvailableCopies == 0 && b.BorrowedBy == "" {
		b.AvailableCopies = b.Copies
	}
	if b.Source == "" {
		b.Source = SourceAdmin
	}
	if b.CoverImage == "" {
		b.CoverImage = PlaceholderCover(b.Title)
	}
	if b.Ratings == nil {
		b.Ratings = []float64{}
	}
	if b.Reviews == nil {
		b.Reviews = []Review{}
	}
	ts := now.UTC().Format(time.RFC3339)
	if b.CreatedAt == "" {
		b.CreatedAt = ts
	}
	b.UpdatedAt = ts
	if err := Validate(b); err != nil {
		return Book{}, err
	}
	b.Normalize()
	return b, nil
}

// FromMetadata pre-fills a book from a metadata lookup.
func FromMetadata(m metadata.BookMetadata, id string) Book {
	b := Book{
		ID:              id,
		Title:           m.Title,
		Author:          m.Author,
		ISBN:            m.ISBN,
		Category:        m.Category,
		Description:     m.Description,
		PublishedYear:   m.PublishedYear,
		Publisher:       m.Publisher,
		Pages:           m.Pages,
		Language:        m.Language,
		CoverImage:      m.CoverImage,
		Copies:          1,
		AvailableCopies: 1,
		Available:       true,
		Ratings:         []float64{},
		Reviews:         []Review{},
		Source:          SourceGoogleBooks,
	}
	if b.CoverImage == "" {
		b.CoverImage = PlaceholderCover(b.Title)
	}
	return b
}

// OnLoan is the number of copies currently lent out.
func (b Book) OnLoan() int {
	return b.Copies - b.AvailableCopies
}

// Resize changes the number of copies held, keeping the loaned copies
// out of availableCopies.
func (b *Book) Resize(copies int) error {
	if copies < 1 {
		return fmt.Errorf("%w: copies must be at least 1", ErrInvalid)
	}
	lent := b.OnLoan()
	if copies < lent {
		return fmt.Errorf("%w: %d requested, %d on loan", ErrCopiesOnLoan, copies, lent)
	}
	b.Copies = copies
	b.AvailableCopies = copies - lent
	b.Normalize()
	return nil
}
