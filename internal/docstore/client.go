// Package docstore is an HTTP client for the libractl document server.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blackwell-systems/libractl/internal/remote"
)

// Client is an authenticated document server client. It implements
// remote.Store.
type Client struct {
	token   string
	apiBase string
	http    *http.Client
}

var _ remote.Store = (*Client)(nil)

// New creates a Client for the server at apiBase (e.g. http://host:8080).
func New(apiBase, token string) *Client {
	// Strip trailing slash for consistent URL building.
	apiBase = strings.TrimRight(apiBase, "/")
	return &Client{
		token:   token,
		apiBase: apiBase,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithHTTPClient swaps the underlying transport; used by tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// do executes the request with standard headers.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("Content-Type") == "" && req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// Transport failures (refused, reset, timeout) all mean unreachable.
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return resp, nil
}

// doJSON sends a request and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, url string, body interface{}, header http.Header, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// url builds an API URL from path segments.
func (c *Client) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.apiBase + "/v1/" + strings.Join(escaped, "/")
}

// checkStatus returns a typed error for non-2xx responses.
func checkStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized:
		return remote.ErrUnauthorized
	case http.StatusForbidden:
		return remote.ErrForbidden
	case http.StatusNotFound:
		return remote.ErrNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return remote.ErrConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return remote.ErrUnavailable
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("document server error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
