// Package seed populates an empty library with sample branches, accounts
// and books.
package seed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/accounts"
	"github.com/blackwell-systems/libractl/internal/branches"
	"github.com/blackwell-systems/libractl/internal/catalog"
	"github.com/blackwell-systems/libractl/internal/circulation"
	"github.com/blackwell-systems/libractl/internal/localstore"
	"github.com/blackwell-systems/libractl/internal/logging"
	"github.com/blackwell-systems/libractl/internal/metadata"
	"github.com/blackwell-systems/libractl/internal/reconcile"
	"github.com/blackwell-systems/libractl/internal/remote"
)

// MinBooks is the catalog size below which sample titles are fetched.
const MinBooks = 5

// Titles are the well-known books fetched for a new catalog.
var Titles = []string{
	"To Kill a Mockingbird",
	"1984",
	"The Great Gatsby",
	"Pride and Prejudice",
	"The Hobbit",
	"Sapiens: A Brief History of Humankind",
	"The Alchemist",
	"Atomic Habits",
	"Educated",
	"The Silent Patient",
	"Dune",
	"The Midnight Library",
}

// Report summarizes what Initialize created.
type Report struct {
	Branches int
	Accounts int
	Books    int
	Fetched  int
	Fallback bool
	Warnings []string
}

// Seeder initializes the local store.
type Seeder struct {
	kv    localstore.KV
	books *reconcile.Collection[catalog.Book]
	meta  metadata.Source
	log   *zap.Logger
}

// New creates a seeder. Books already in store are kept.
func New(kv localstore.KV, store remote.Store, meta metadata.Source, log *zap.Logger) *Seeder {
	if meta == nil {
		meta = metadata.None{}
	}
	return &Seeder{
		kv:    kv,
		books: catalog.NewCollection(kv, store, log),
		meta:  meta,
		log:   logging.OrNop(log),
	}
}

// Initialize fills every missing key. It is safe to run repeatedly.
func (s *Seeder) Initialize(ctx context.Context) (Report, error) {
	var rep Report

	existing, err := localstore.ReadCollection[branches.Branch](ctx, s.kv, localstore.KeyBranches)
	if err != nil {
		return rep, err
	}
	if len(existing) == 0 {
		if err := localstore.WriteCollection(ctx, s.kv, localstore.KeyBranches, branches.Defaults()); err != nil {
			return rep, fmt.Errorf("writing branches: %w", err)
		}
		rep.Branches = len(branches.Defaults())
	}

	users, err := localstore.ReadCollection[accounts.Account](ctx, s.kv, localstore.KeyUsers)
	if err != nil {
		return rep, err
	}
	if len(users) == 0 {
		if err := localstore.WriteCollection(ctx, s.kv, localstore.KeyUsers, SampleAccounts()); err != nil {
			return rep, fmt.Errorf("writing accounts: %w", err)
		}
		rep.Accounts = len(SampleAccounts())
	}

	loaded, err := s.books.Load(ctx)
	if err != nil {
		return rep, err
	}
	if loaded.RemoteErr != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("using local books: %v", loaded.RemoteErr))
	}
	books := loaded.Records
	if len(books) < MinBooks {
		samples := s.fetchSamples(ctx)
		if samples == nil {
			rep.Fallback = true
			samples = []catalog.Book{FallbackBook()}
		} else {
			rep.Fetched = len(samples)
		}
		for _, b := range samples {
			if catalog.ByID(books, b.ID) != nil {
				continue
			}
			books = append(books, b)
		}
		if err := s.books.WriteLocal(ctx, books); err != nil {
			return rep, fmt.Errorf("writing books: %w", err)
		}
	}
	rep.Books = len(books)

	if ok, err := localstore.Exists(ctx, s.kv, localstore.KeySettings); err != nil {
		return rep, err
	} else if !ok {
		if err := localstore.WriteObject(ctx, s.kv, localstore.KeySettings, circulation.DefaultSettings()); err != nil {
			return rep, err
		}
	}
	for _, key := range []string{localstore.KeyReservations, localstore.KeyBorrowingRecords} {
		ok, err := localstore.Exists(ctx, s.kv, key)
		if err != nil {
			return rep, err
		}
		if !ok {
			if err := localstore.WriteCollection(ctx, s.kv, key, []struct{}{}); err != nil {
				return rep, err
			}
		}
	}

	s.log.Info("Library initialized",
		zap.Int("branches", rep.Branches), zap.Int("accounts", rep.Accounts),
		zap.Int("books", rep.Books), zap.Int("fetched", rep.Fetched), zap.Bool("fallback", rep.Fallback))
	return rep, nil
}

// ResetBooks drops the local catalog and initializes again.
func (s *Seeder) ResetBooks(ctx context.Context) (Report, error) {
	if err := s.kv.Delete(ctx, localstore.KeyBooks); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		return Report{}, fmt.Errorf("clearing books: %w", err)
	}
	return s.Initialize(ctx)
}

// fetchSamples looks every title up concurrently. It returns nil when
// no title produced a hit.
func (s *Seeder) fetchSamples(ctx context.Context) []catalog.Book {
	hits := make([]*metadata.BookMetadata, len(Titles))
	var wg sync.WaitGroup
	for i, title := range Titles {
		wg.Add(1)
		go func(i int, title string) {
			defer wg.Done()
			if res := s.meta.Search(ctx, title); len(res) > 0 {
				hits[i] = &res[0]
			}
		}(i, title)
	}
	wg.Wait()

	found := false
	for _, h := range hits {
		if h != nil {
			found = true
			break
		}
	}
	if !found {
		s.log.Warn("Metadata source returned nothing; using fallback catalog")
		return nil
	}

	books := make([]catalog.Book, len(Titles))
	for i := range Titles {
		books[i] = SampleBook(i, hits[i])
	}
	return books
}

// SampleBook builds the i-th sample from an optional search hit.
func SampleBook(i int, hit *metadata.BookMetadata) catalog.Book {
	var m metadata.BookMetadata
	if hit != nil {
		m = *hit
	}
	title := Titles[i%len(Titles)]
	b := catalog.Book{
		ID:              fmt.Sprintf("book-%d", i+1),
		Title:           orDefault(m.Title, metadata.UnknownTitle, title),
		Author:          orDefault(m.Author, "", "Unknown Author"),
		ISBN:            orDefault(m.ISBN, metadata.UnknownISBN, fmt.Sprintf("978000000000%d", i)),
		Category:        orDefault(m.Category, metadata.Uncategorized, "Fiction"),
		Description:     orDefault(m.Description, "", metadata.NoDescription),
		PublishedYear:   orDefault(m.PublishedYear, metadata.UnknownYear, "2000"),
		CoverImage:      orDefault(m.CoverImage, "", catalog.PlaceholderCover(title)),
		Publisher:       orDefault(m.Publisher, "", metadata.UnknownPublisher),
		Pages:           m.Pages,
		Language:        orDefault(m.Language, "", "English"),
		Copies:          5,
		AvailableCopies: 5,
		Branch:          fmt.Sprintf("branch-%d", i%3+1),
		Ratings:         append([]float64(nil), []float64{4, 5, 5, 4, 5}[:i%5+1]...),
		Reviews:         []catalog.Review{},
		Source:          catalog.SourceGoogleBooks,
	}
	if b.Pages == 0 {
		b.Pages = 300
	}
	if i%3 == 0 {
		b.Reviews = []catalog.Review{{
			UserID: "user-2",
			Text:   "A great read, highly recommended!",
			Rating: 5,
			Date:   "2023-05-15",
		}}
	}
	b.Normalize()
	return b
}

// FallbackBook is the single entry used when the metadata API is
// unreachable.
func FallbackBook() catalog.Book {
	b := catalog.Book{
		ID:              "book-1",
		Title:           "To Kill a Mockingbird",
		Author:          "Harper Lee",
		ISBN:            "9780061120084",
		Category:        "Fiction",
		Description:     "The unforgettable novel of a childhood in a sleepy Southern town and the crisis of conscience that rocked it.",
		PublishedYear:   "1960",
		CoverImage:      "/mockingbird-silhouette.png",
		Publisher:       "HarperCollins",
		Pages:           336,
		Language:        "English",
		Copies:          5,
		AvailableCopies: 5,
		Branch:          "branch-1",
		Ratings:         []float64{4, 5, 5, 4, 5},
		Reviews: []catalog.Review{{
			UserID: "user-2",
			Text:   "A timeless classic that everyone should read.",
			Rating: 5,
			Date:   "2023-05-15",
		}},
		Source: catalog.SourceFallback,
	}
	b.Normalize()
	return b
}

// SampleAccounts returns the demo admin and two patrons.
func SampleAccounts() []accounts.Account {
	return []accounts.Account{
		{
			ID:                "admin-1",
			Name:              "Admin User",
			Email:             "admin@library.com",
			IsAdmin:           true,
			Role:              "System Administrator",
			LibraryCardNumber: "ADMIN-001",
			RegisteredDate:    "2023-01-15",
			Branch:            "branch-1",
			BorrowedBooks:     []string{},
		},
		{
			ID:                "user-1",
			Name:              "John Reader",
			Email:             "user@library.com",
			LibraryCardNumber: "LIB-10042",
			RegisteredDate:    "2023-03-22",
			Branch:            "branch-1",
			Phone:             "(555) 234-5678",
			Address:           "101 Reader Lane, Booktown, BT 12345",
			BorrowedBooks:     []string{},
		},
		{
			ID:                "user-2",
			Name:              "Sarah Bookworm",
			Email:             "sarah@example.com",
			LibraryCardNumber: "LIB-10043",
			RegisteredDate:    "2023-04-15",
			Branch:            "branch-2",
			Phone:             "(555) 345-6789",
			Address:           "202 Novel Street, Booktown, BT 12345",
			BorrowedBooks:     []string{},
		},
	}
}

// orDefault returns v unless it is empty or the API placeholder.
func orDefault(v, placeholder, def string) string {
	if v == "" || (placeholder != "" && v == placeholder) {
		return def
	}
	return v
}
