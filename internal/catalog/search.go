package catalog

import (
	"sort"
	"strings"
)

// Filter applies all non-empty criteria and returns matching books.
type Filter struct {
	Category      string // "" or "All" matches everything
	Branch        string
	Search        string // matches title, author, isbn or category
	AvailableOnly bool
}

// Apply returns the subset of books matching all non-empty filter fields.
func (f Filter) Apply(books []Book) []Book {
	out := []Book{}
	for _, b := range books {
		if f.Category != "" && f.Category != "All" && !strings.EqualFold(b.Category, f.Category) {
			continue
		}
		if f.Branch != "" && b.Branch != f.Branch {
			continue
		}
		if f.AvailableOnly && b.AvailableCopies <= 0 {
			continue
		}
		if f.Search != "" && !matchesSearch(b, f.Search) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ByID returns the first book with the given ID, or nil.
func ByID(books []Book, id string) *Book {
	for i := range books {
		if books[i].ID == id {
			return &books[i]
		}
	}
	return nil
}

// Categories lists distinct categories, sorted, with "All" first.
func Categories(books []Book) []string {
	seen := map[string]bool{}
	var cats []string
	for _, b := range books {
		if b.Category == "" || seen[b.Category] {
			continue
		}
		seen[b.Category] = true
		cats = append(cats, b.Category)
	}
	sort.Strings(cats)
	return append([]string{"All"}, cats...)
}

func matchesSearch(b Book, q string) bool {
	q = strings.ToLower(q)
	for _, field := range []string{b.Title, b.Author, b.ISBN, b.Category} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
