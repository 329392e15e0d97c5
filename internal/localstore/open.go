package localstore

import "fmt"

// Open returns the backend named by kind ("file", "sqlite" or "memory").
func Open(kind, path string) (KV, error) {
	switch kind {
	case "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	case "memory":
		return NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown local store backend %q", kind)
	}
}
