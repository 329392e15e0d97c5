package catalog

import (
	"math"
	"net/url"
	"strings"
	"time"
)

// Book is one catalog entry as stored under the local "books" key.
type Book struct {
	ID              string     `json:"id" yaml:"id"`
	RemoteID        string     `json:"remoteId,omitempty" yaml:"remote_id,omitempty"`
	Version         int64      `json:"version,omitempty" yaml:"-"`
	Title           string     `json:"title" yaml:"title" validate:"required"`
	Author          string     `json:"author" yaml:"author" validate:"required"`
	ISBN            string     `json:"isbn" yaml:"isbn,omitempty"`
	Category        string     `json:"category" yaml:"category,omitempty"`
	Description     string     `json:"description" yaml:"description,omitempty"`
	PublishedYear   string     `json:"publishedYear" yaml:"published_year,omitempty"`
	Publisher       string     `json:"publisher" yaml:"publisher,omitempty"`
	Pages           int        `json:"pages" yaml:"pages,omitempty" validate:"gte=0"`
	Language        string     `json:"language" yaml:"language,omitempty"`
	CoverImage      string     `json:"coverImage" yaml:"cover_image,omitempty"`
	Copies          int        `json:"copies" yaml:"copies" validate:"gte=1"`
	AvailableCopies int        `json:"availableCopies" yaml:"available_copies" validate:"gte=0,ltefield=Copies"`
	Branch          string     `json:"branch" yaml:"branch,omitempty"`
	Available       bool       `json:"available" yaml:"available"`
	BorrowedBy      string     `json:"borrowedBy" yaml:"borrowed_by,omitempty"`
	DueDate         *time.Time `json:"dueDate" yaml:"due_date,omitempty"`
	Ratings         []float64  `json:"ratings" yaml:"ratings,omitempty"`
	Reviews         []Review   `json:"reviews" yaml:"reviews,omitempty"`
	Source          Source     `json:"source" yaml:"source"`
	CreatedAt       string     `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt       string     `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// Review is a patron's comment on a book. Date is a calendar date
// (YYYY-MM-DD).
type Review struct {
	UserID string  `json:"userId" yaml:"user_id"`
	Text   string  `json:"text" yaml:"text"`
	Rating float64 `json:"rating" yaml:"rating"`
	Date   string  `json:"date" yaml:"date"`
}

// Source tags where a catalog entry came from.
type Source string

const (
	SourceAdmin       Source = "admin"
	SourceGoogleBooks Source = "google_books"
	SourceFallback    Source = "fallback"
)

// DedupKey identifies the book across stores.
func (b Book) DedupKey() string { return b.ID }

// DocID returns the remote document id, if the book has been mirrored.
func (b Book) DocID() string { return b.RemoteID }

// DocVersion returns the remote document version.
func (b Book) DocVersion() int64 { return b.Version }

// WithDoc attaches remote identity. Books created remotely without a
// local id adopt the document id.
func (b Book) WithDoc(id string, version int64) Book {
	b.RemoteID = id
	b.Version = version
	if b.ID == "" {
		b.ID = id
	}
	return b
}

// Normalize re-derives the cached fields: clamps availableCopies into
// [0, copies] and sets Available accordingly.
func (b *Book) Normalize() {
	if b.Copies < 0 {
		b.Copies = 0
	}
	if b.AvailableCopies < 0 {
		b.AvailableCopies = 0
	}
	if b.AvailableCopies > b.Copies {
		b.AvailableCopies = b.Copies
	}
	b.Available = b.AvailableCopies > 0
	if b.BorrowedBy == "" {
		b.DueDate = nil
	}
}

// AddReview appends a review and its rating.
func (b *Book) AddReview(r Review) {
	b.Reviews = append(b.Reviews, r)
	b.Ratings = append(b.Ratings, r.Rating)
}

// AverageRating returns the mean rating rounded to one decimal, or 0.
func (b Book) AverageRating() float64 {
	if len(b.Ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range b.Ratings {
		sum += r
	}
	return math.Round(sum/float64(len(b.Ratings))*10) / 10
}

// PlaceholderCover returns the generated cover URL for a title.
func PlaceholderCover(title string) string {
	return "/placeholder.svg?height=400&width=300&query=" + strings.ReplaceAll(url.QueryEscape(title), "+", "%20") + " book cover"
}
