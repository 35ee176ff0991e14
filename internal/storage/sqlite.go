//go:build sqlite

package storage

import (
	"context"
	"errors"

	_ "modernc.org/sqlite"
)

const defaultKind = "sqlite"

type SQLiteStore struct {
	path string
	sqlStore
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path:     path,
		sqlStore: sqlStore{dialect: dialect{driver: "sqlite", payloadType: "BLOB"}},
	}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	return s.open(ctx, s.path, nil)
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}
