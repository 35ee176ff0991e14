package storage

import (
	"context"
	"os"
	"testing"
)

func TestRebindNumbersPlaceholders(t *testing.T) {
	pg := NewPostgresStore("")
	got := pg.rebind(`SELECT payload FROM runs WHERE id = ? AND region = ?`)
	want := `SELECT payload FROM runs WHERE id = $1 AND region = $2`
	if got != want {
		t.Fatalf("rebind=%q want=%q", got, want)
	}

	lite := sqlStore{dialect: dialect{driver: "sqlite"}}
	query := `SELECT 1 WHERE ? = ?`
	if got := lite.rebind(query); got != query {
		t.Fatalf("expected sqlite query unchanged, got %q", got)
	}
}

// Set GYMTEAM_TEST_POSTGRES_DSN to run against a live server.
func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("GYMTEAM_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GYMTEAM_TEST_POSTGRES_DSN not set")
	}
	store := NewPostgresStore(dsn)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	exerciseStore(t, store)
}
