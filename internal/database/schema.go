package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"scanlog-go/internal/database/migrations"
	"scanlog-go/internal/scanlog"
)

// EnsureStore creates the store file at path with the files schema if no
// file exists there yet. An existing file is never touched, whatever its
// schema. Reports whether this call created the store.
//
// The schema is built in a temporary file in the same directory and linked
// into place, so a concurrent creator never observes a half-initialized
// store: whichever link lands first wins and the other creator discards its
// copy.
func EnsureStore(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, &scanlog.StoreError{Op: "stat store", Err: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, &scanlog.StoreError{Op: "create store directory", Err: err}
	}

	tmpPath := filepath.Join(dir, ".tmp-"+uuid.New().String()+".db")
	defer os.Remove(tmpPath)

	if err := initSchema(tmpPath); err != nil {
		return false, &scanlog.StoreError{Op: "create store", Err: err}
	}

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		// Some filesystems do not support hard links.
		if _, statErr := os.Stat(path); statErr == nil {
			return false, nil
		}
		if err := os.Rename(tmpPath, path); err != nil {
			return false, &scanlog.StoreError{Op: "create store", Err: err}
		}
	}
	return true, nil
}

// initSchema creates a new SQLite file at path and applies all migrations.
func initSchema(path string) error {
	db, err := OpenConnection(path)
	if err != nil {
		return err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

// NewMemoryStore returns a store backed by an in-memory database with the
// schema applied.
func NewMemoryStore(opts Options) (*SQLiteStore, error) {
	db, err := OpenConnection(":memory:")
	if err != nil {
		return nil, &scanlog.StoreError{Op: "open", Err: err}
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, &scanlog.StoreError{Op: "migrate", Err: err}
	}
	return NewSQLiteStoreFromDB(db, ":memory:", opts), nil
}

func checkMigrations(db *sql.DB) error {
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		return fmt.Errorf("checking store schema: %w", err)
	}
	return nil
}
