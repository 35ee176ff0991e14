package storage

import "fmt"

// DefaultStoreKind is sqlite when built with the sqlite tag and memory
// otherwise.
func DefaultStoreKind() string {
	return defaultKind
}

// NewStore builds a backend by kind. target is the database path for sqlite
// and the connection string for postgres; memory ignores it.
func NewStore(kind, target string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(target)
	case "postgres":
		return NewPostgresStore(target), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
