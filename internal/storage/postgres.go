package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const pingTimeout = 5 * time.Second

type PostgresStore struct {
	dsn string
	sqlStore
}

func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{
		dsn:      dsn,
		sqlStore: sqlStore{dialect: dialect{driver: "postgres", payloadType: "BYTEA", numbered: true}},
	}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	if strings.TrimSpace(s.dsn) == "" {
		return errors.New("empty postgres dsn")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	err := s.open(ctx, s.dsn, func(db *sql.DB) {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	})
	return describePostgresError(err)
}

// describePostgresError annotates server errors with their condition name.
func describePostgresError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("postgres %s (%s): %w", pqErr.Code.Name(), pqErr.Code, err)
	}
	return err
}
