// Package metadata looks up book metadata from a public books API.
package metadata

import "context"

// BookMetadata is a normalized search hit. Missing fields carry the
// placeholder values listed on each field.
type BookMetadata struct {
	ID            string `json:"id"`
	Title         string `json:"title"`         // "Unknown Title"
	Author        string `json:"author"`        // "Unknown Author"
	ISBN          string `json:"isbn"`          // "Unknown ISBN"
	Description   string `json:"description"`   // "No description available."
	PublishedYear string `json:"publishedYear"` // "Unknown"
	CoverImage    string `json:"coverImage"`    // empty when the API has none
	Publisher     string `json:"publisher"`     // "Unknown Publisher"
	Pages         int    `json:"pages"`
	Language      string `json:"language"` // "en"
	Category      string `json:"category"` // "Uncategorized"
}

// Source is a read-only metadata provider. Failures degrade to empty
// results; callers never see transport errors.
type Source interface {
	Search(ctx context.Context, query string) []BookMetadata
	LookupISBN(ctx context.Context, isbn string) (*BookMetadata, bool)
}

// Placeholder values used when the API omits a field.
const (
	UnknownTitle     = "Unknown Title"
	UnknownAuthor    = "Unknown Author"
	UnknownISBN      = "Unknown ISBN"
	NoDescription    = "No description available."
	UnknownYear      = "Unknown"
	UnknownPublisher = "Unknown Publisher"
	DefaultLanguage  = "en"
	Uncategorized    = "Uncategorized"
)

// None is a Source that never finds anything; used offline.
type None struct{}

func (None) Search(context.Context, string) []BookMetadata { return []BookMetadata{} }
func (None) LookupISBN(context.Context, string) (*BookMetadata, bool) {
	return nil, false
}
