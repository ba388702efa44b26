package storage

import "fmt"

// NewStore returns an uninitialized store for the named backend.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(sqlitePath), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// CloseIfSupported closes store when the backend holds resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
