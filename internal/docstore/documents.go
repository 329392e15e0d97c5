package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/blackwell-systems/libractl/internal/remote"
)

// listResponse is the body of GET /v1/{collection}.
type listResponse struct {
	Documents []remote.Document `json:"documents"`
}

// List returns every document in collection.
func (c *Client) List(ctx context.Context, collection string) ([]remote.Document, error) {
	var out listResponse
	if err := c.doJSON(ctx, http.MethodGet, c.url(collection), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	if out.Documents == nil {
		return []remote.Document{}, nil
	}
	return out.Documents, nil
}

// Get fetches one document. Returns remote.ErrNotFound if absent.
func (c *Client) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	var d remote.Document
	if err := c.doJSON(ctx, http.MethodGet, c.url(collection, id), nil, nil, &d); err != nil {
		return remote.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return d, nil
}

// Create stores data under a server-generated id.
func (c *Client) Create(ctx context.Context, collection string, data json.RawMessage) (remote.Document, error) {
	var d remote.Document
	if err := c.doJSON(ctx, http.MethodPost, c.url(collection), data, nil, &d); err != nil {
		return remote.Document{}, fmt.Errorf("create in %s: %w", collection, err)
	}
	return d, nil
}

// Put upserts data under id.
func (c *Client) Put(ctx context.Context, collection, id string, data json.RawMessage) (remote.Document, error) {
	var d remote.Document
	if err := c.doJSON(ctx, http.MethodPut, c.url(collection, id), data, nil, &d); err != nil {
		return remote.Document{}, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return d, nil
}

// Update replaces an existing document. With ifVersion > 0 the server
// rejects the write when the stored version differs.
func (c *Client) Update(ctx context.Context, collection, id string, data json.RawMessage, ifVersion int64) (remote.Document, error) {
	var h http.Header
	if ifVersion > 0 {
		h = http.Header{}
		h.Set("If-Match", strconv.Quote(strconv.FormatInt(ifVersion, 10)))
	}
	var d remote.Document
	if err := c.doJSON(ctx, http.MethodPatch, c.url(collection, id), data, h, &d); err != nil {
		return remote.Document{}, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return d, nil
}

// Delete removes a document. Returns remote.ErrNotFound if absent.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, c.url(collection, id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}
