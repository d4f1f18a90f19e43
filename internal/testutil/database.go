package testutil

import (
	"path/filepath"
	"testing"

	"scanlog-go/internal/database"
)

// NewTestStore returns an in-memory store with the schema applied. It is
// closed when the test completes.
func NewTestStore(t testing.TB) *database.SQLiteStore {
	t.Helper()
	return NewTestStoreWithOptions(t, database.Options{})
}

// NewTestStoreWithOptions is NewTestStore with explicit store options.
func NewTestStoreWithOptions(t testing.TB, opts database.Options) *database.SQLiteStore {
	t.Helper()
	s, err := database.NewMemoryStore(opts)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// NewFileStore creates a store file in a temp directory and opens it.
func NewFileStore(t testing.TB) *database.SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	if _, err := database.EnsureStore(path); err != nil {
		t.Fatalf("failed to create store file: %v", err)
	}
	s, err := database.NewSQLiteStore(path, database.Options{})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
