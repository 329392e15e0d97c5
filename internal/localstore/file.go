package localstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/blackwell-systems/libractl/internal/util"
)

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// FileStore keeps one <key>.json file per key in a directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := util.EnsureDir(baseDir); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.baseDir, key+".json")
}

// Get returns the raw value for key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if !keyRe.MatchString(key) {
		return nil, fmt.Errorf("invalid key %q", key)
	}
	data, err := os.ReadFile(s.Path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put replaces the key's file atomically so a crash mid-write never
// leaves a truncated value behind.
func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	if err := util.WriteFileAtomic(s.Path(key), value, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Returns ErrNotFound if absent.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	err := os.Remove(s.Path(key))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// Keys lists stored keys in lexical order.
func (s *FileStore) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for file stores.
func (s *FileStore) Close() error { return nil }
