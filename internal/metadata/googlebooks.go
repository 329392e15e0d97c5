package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blackwell-systems/libractl/internal/logging"
)

// DefaultAPIBase is the public Google Books endpoint.
const DefaultAPIBase = "https://www.googleapis.com/books/v1"

// GoogleBooks queries the Google Books volumes API.
type GoogleBooks struct {
	apiBase    string
	maxResults int
	http       *http.Client
	log        *zap.Logger
}

var _ Source = (*GoogleBooks)(nil)

// NewGoogleBooks creates a client. An empty apiBase uses DefaultAPIBase;
// maxResults <= 0 uses 10.
func NewGoogleBooks(apiBase string, maxResults int, log *zap.Logger) *GoogleBooks {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	return &GoogleBooks{
		apiBase:    strings.TrimRight(apiBase, "/"),
		maxResults: maxResults,
		http:       &http.Client{Timeout: 15 * time.Second},
		log:        logging.OrNop(log),
	}
}

// WithHTTPClient swaps the underlying transport; used by tests.
func (g *GoogleBooks) WithHTTPClient(h *http.Client) *GoogleBooks {
	g.http = h
	return g
}

type volumesResponse struct {
	Items []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string   `json:"title"`
	Authors             []string `json:"authors"`
	Description         string   `json:"description"`
	PublishedDate       string   `json:"publishedDate"`
	Publisher           string   `json:"publisher"`
	PageCount           int      `json:"pageCount"`
	Language            string   `json:"language"`
	Categories          []string `json:"categories"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
	ImageLinks *struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"imageLinks"`
}

// Search runs a free-text query.
func (g *GoogleBooks) Search(ctx context.Context, query string) []BookMetadata {
	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", strconv.Itoa(g.maxResults))

	items, err := g.volumes(ctx, q)
	if err != nil {
		g.log.Warn("Book search failed", zap.String("query", query), zap.Error(err))
		return []BookMetadata{}
	}
	out := make([]BookMetadata, 0, len(items))
	for _, it := range items {
		out = append(out, normalize(it, ""))
	}
	return out
}

// LookupISBN returns the first match for isbn. The returned ISBN is the
// queried one.
func (g *GoogleBooks) LookupISBN(ctx context.Context, isbn string) (*BookMetadata, bool) {
	q := url.Values{}
	q.Set("q", "isbn:"+isbn)

	items, err := g.volumes(ctx, q)
	if err != nil {
		g.log.Warn("ISBN lookup failed", zap.String("isbn", isbn), zap.Error(err))
		return nil, false
	}
	if len(items) == 0 {
		return nil, false
	}
	m := normalize(items[0], isbn)
	return &m, true
}

func (g *GoogleBooks) volumes(ctx context.Context, q url.Values) ([]volume, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+"/volumes?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("books API returned %d", resp.StatusCode)
	}
	var out volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode volumes: %w", err)
	}
	return out.Items, nil
}

// normalize fills placeholders for missing fields. A non-empty isbn
// overrides the identifiers in the response.
func normalize(v volume, isbn string) BookMetadata {
	info := v.VolumeInfo
	m := BookMetadata{
		ID:            v.ID,
		Title:         orDefault(info.Title, UnknownTitle),
		Author:        UnknownAuthor,
		ISBN:          isbn,
		Description:   orDefault(info.Description, NoDescription),
		PublishedYear: UnknownYear,
		Publisher:     orDefault(info.Publisher, UnknownPublisher),
		Pages:         info.PageCount,
		Language:      orDefault(info.Language, DefaultLanguage),
		Category:      Uncategorized,
	}
	if len(info.Authors) > 0 {
		m.Author = strings.Join(info.Authors, ", ")
	}
	if m.ISBN == "" {
		m.ISBN = pickISBN(info)
	}
	if info.PublishedDate != "" {
		m.PublishedYear = info.PublishedDate
		if len(m.PublishedYear) > 4 {
			m.PublishedYear = m.PublishedYear[:4]
		}
	}
	if info.ImageLinks != nil && info.ImageLinks.Thumbnail != "" {
		m.CoverImage = strings.Replace(info.ImageLinks.Thumbnail, "http:", "https:", 1)
	}
	if len(info.Categories) > 0 {
		m.Category = info.Categories[0]
	}
	return m
}

func pickISBN(info volumeInfo) string {
	for _, id := range info.IndustryIdentifiers {
		if id.Type == "ISBN_13" && id.Identifier != "" {
			return id.Identifier
		}
	}
	if len(info.IndustryIdentifiers) > 0 && info.IndustryIdentifiers[0].Identifier != "" {
		return info.IndustryIdentifiers[0].Identifier
	}
	return UnknownISBN
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
