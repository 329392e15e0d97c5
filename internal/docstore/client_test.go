package docstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blackwell-systems/libractl/internal/docstore"
	"github.com/blackwell-systems/libractl/internal/remote"
)

func TestClient_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, remote.ErrUnauthorized},
		{http.StatusForbidden, remote.ErrForbidden},
		{http.StatusNotFound, remote.ErrNotFound},
		{http.StatusConflict, remote.ErrConflict},
		{http.StatusPreconditionFailed, remote.ErrConflict},
		{http.StatusServiceUnavailable, remote.ErrUnavailable},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
		}))
		_, err := docstore.New(srv.URL, "").Get(context.Background(), remote.Books, "x")
		srv.Close()
		if !errors.Is(err, c.want) {
			t.Errorf("status %d: err = %v, want %v", c.status, err, c.want)
		}
	}
}

func TestClient_SendsTokenAndIfMatch(t *testing.T) {
	var gotAuth, gotIfMatch, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotIfMatch = r.Header.Get("If-Match")
		gotPath = r.URL.Path
		gotMethod = r.Method
		body, _ := io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(remote.Document{ID: "doc-1", Version: 4, Data: body})
	}))
	defer srv.Close()

	c := docstore.New(srv.URL+"/", "s3cret")
	d, err := c.Update(context.Background(), remote.Books, "doc-1", json.RawMessage(`{"availableCopies":2}`), 3)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotIfMatch != `"3"` {
		t.Errorf("If-Match = %q, want %q", gotIfMatch, `"3"`)
	}
	if gotMethod != http.MethodPatch || gotPath != "/v1/books/doc-1" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if d.Version != 4 || string(d.Data) != `{"availableCopies":2}` {
		t.Errorf("decoded = %+v", d)
	}
}

func TestClient_UnconditionalUpdateOmitsIfMatch(t *testing.T) {
	var sawIfMatch bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawIfMatch = r.Header["If-Match"]
		_ = json.NewEncoder(w).Encode(remote.Document{ID: "a", Version: 2})
	}))
	defer srv.Close()

	if _, err := docstore.New(srv.URL, "").Update(context.Background(), remote.Books, "a", json.RawMessage(`{}`), 0); err != nil {
		t.Fatal(err)
	}
	if sawIfMatch {
		t.Error("If-Match sent for unconditional update")
	}
}

func TestClient_ListEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"documents":null}`))
	}))
	defer srv.Close()

	docs, err := docstore.New(srv.URL, "").List(context.Background(), remote.Staff)
	if err != nil {
		t.Fatal(err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("List = %#v, want empty non-nil", docs)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := docstore.New(url, "").List(context.Background(), remote.Books)
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
