// Package localstore persists JSON-serialized collections in a local
// key-value store. Readers tolerate missing keys: collections default to
// empty and objects to the caller's default.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known keys.
const (
	KeyUsers            = "users"
	KeyBooks            = "books"
	KeyBranches         = "branches"
	KeyBorrowingRecords = "borrowingRecords"
	KeySettings         = "settings"
	KeyReservations     = "reservations"
	KeyTheme            = "theme"
)

// ErrNotFound is returned by Get and Delete when a key is absent.
var ErrNotFound = errors.New("key not found")

// KV is a flat key-value store holding UTF-8 JSON values.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// ReadCollection decodes the array stored under key. A missing key yields
// an empty, non-nil slice.
func ReadCollection[T any](ctx context.Context, kv KV, key string) ([]T, error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) || (err == nil && len(data) == 0) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	if out == nil {
		return []T{}, nil
	}
	return out, nil
}

// WriteCollection encodes items as a JSON array under key.
func WriteCollection[T any](ctx context.Context, kv KV, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// ReadObject decodes the object stored under key into a copy of def.
// Fields absent from the stored JSON keep their value from def. The second
// return reports whether the key existed.
func ReadObject[T any](ctx context.Context, kv KV, key string, def T) (T, bool, error) {
	data, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) || (err == nil && len(data) == 0) {
		return def, false, nil
	}
	if err != nil {
		return def, false, fmt.Errorf("reading %s: %w", key, err)
	}
	out := def
	if err := json.Unmarshal(data, &out); err != nil {
		return def, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return out, true, nil
}

// WriteObject encodes v as JSON under key.
func WriteObject[T any](ctx context.Context, kv KV, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func Exists(ctx context.Context, kv KV, key string) (bool, error) {
	_, err := kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
