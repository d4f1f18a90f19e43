package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Migrate up
	err := MigrateUp(db)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Verify tables were created
	tables := []string{"files", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Fresh database should need migration
	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Error("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	// Error should mention needing migration
	if err.Error() != "store has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Migrate up
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	// Status should be OK now
	err := CheckDBMigrationStatus(db)
	if err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	// Run migration twice
	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	// Status should still be OK
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_Indexes(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	indexes := []string{"idx_files_path", "idx_files_host", "idx_files_device_id", "idx_files_folder", "idx_files_filename"}
	for _, index := range indexes {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&name)
		if err != nil {
			t.Errorf("Index %s was not created: %v", index, err)
		}
	}
}

func TestSchema_Defaults(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO files (host, folder) VALUES ('h', '/data/')"); err != nil {
		t.Fatalf("Failed to insert folder: %v", err)
	}

	var (
		deviceID, filename   string
		code, ino, dev, size int64
		mtime                float64
		md5                  sql.NullString
	)
	err := db.QueryRow("SELECT device_id, filename, code, ino, dev, size, mtime, md5 FROM files").
		Scan(&deviceID, &filename, &code, &ino, &dev, &size, &mtime, &md5)
	if err != nil {
		t.Fatalf("Failed to read folder: %v", err)
	}

	if deviceID != "" || filename != "" {
		t.Errorf("device_id = %q, filename = %q, want empty", deviceID, filename)
	}
	if code != -1 || ino != -1 || dev != -1 || size != -1 || mtime != -1 {
		t.Errorf("defaults = (%d, %d, %d, %d, %v), want all -1", code, ino, dev, size, mtime)
	}
	if md5.Valid {
		t.Errorf("md5 = %q, want NULL", md5.String)
	}
}

func TestSchema_NaturalKeyUnique(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec("INSERT INTO files (host, device_id, folder, filename) VALUES ('h', '', '/a/', 'f.txt')")
	if err != nil {
		t.Fatalf("Failed to insert first file: %v", err)
	}

	// Same key must be rejected.
	_, err = db.Exec("INSERT INTO files (host, device_id, folder, filename) VALUES ('h', '', '/a/', 'f.txt')")
	if err == nil {
		t.Error("Expected unique constraint violation for duplicate key, but insert succeeded")
	}

	// A different device is a different key.
	_, err = db.Exec("INSERT INTO files (host, device_id, folder, filename) VALUES ('h', 'dev1', '/a/', 'f.txt')")
	if err != nil {
		t.Errorf("Insert with different device_id failed: %v", err)
	}
}

func TestSchema_TypeChecks(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec("INSERT INTO files (host, folder, filename, size) VALUES ('h', '/a/', 'f.txt', 'large')")
	if err == nil {
		t.Error("Expected check constraint violation for text size, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Every pooled connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	return db
}
