// Package remote defines the document store that mirrors the local
// collections.
package remote

import (
	"context"
	"encoding/json"
)

// Collection names.
const (
	Users            = "users"
	Staff            = "staff"
	Books            = "books"
	Branches         = "branches"
	BorrowingRecords = "borrowingRecords"
	Settings         = "settings"

	// SettingsDoc is the single document in the settings collection.
	SettingsDoc = "librarySettings"
)

// Document is one stored JSON document.
type Document struct {
	ID      string          `json:"id"`
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Store is a collection-oriented document database.
//
// Every write bumps the document version; Update with ifVersion > 0 fails
// with ErrConflict when the stored version differs.
type Store interface {
	List(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Create(ctx context.Context, collection string, data json.RawMessage) (Document, error)
	Put(ctx context.Context, collection, id string, data json.RawMessage) (Document, error)
	Update(ctx context.Context, collection, id string, data json.RawMessage, ifVersion int64) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// Disabled is the Store used when no remote backend is configured.
type Disabled struct{}

func (Disabled) List(context.Context, string) ([]Document, error) { return nil, ErrUnavailable }
func (Disabled) Get(context.Context, string, string) (Document, error) {
	return Document{}, ErrUnavailable
}
func (Disabled) Create(context.Context, string, json.RawMessage) (Document, error) {
	return Document{}, ErrUnavailable
}
func (Disabled) Put(context.Context, string, string, json.RawMessage) (Document, error) {
	return Document{}, ErrUnavailable
}
func (Disabled) Update(context.Context, string, string, json.RawMessage, int64) (Document, error) {
	return Document{}, ErrUnavailable
}
func (Disabled) Delete(context.Context, string, string) error { return ErrUnavailable }

// IsDisabled reports whether s is the Disabled store.
func IsDisabled(s Store) bool {
	_, ok := s.(Disabled)
	return ok
}
