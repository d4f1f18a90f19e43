package vault

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"scanlog-go/internal/scanlog"
)

// testVaultContract runs the behaviour every scanlog.Vault must share.
func testVaultContract(t *testing.T, newVault func(t *testing.T) scanlog.Vault) {
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		v := newVault(t)
		tests := []struct {
			name string
			data string
		}{
			{"laptop.d1.db", "SQLite format 3\x00 rows"},
			{"empty.db", ""},
			{"large.db", strings.Repeat("x", 100000)},
		}
		for _, tt := range tests {
			if err := v.PutSnapshot(ctx, tt.name, strings.NewReader(tt.data), int64(len(tt.data)), 7); err != nil {
				t.Fatalf("PutSnapshot(%s) error = %v", tt.name, err)
			}
			var buf bytes.Buffer
			if err := v.GetSnapshot(ctx, tt.name, &buf); err != nil {
				t.Fatalf("GetSnapshot(%s) error = %v", tt.name, err)
			}
			if buf.String() != tt.data {
				t.Errorf("GetSnapshot(%s) returned %d bytes, want %d", tt.name, buf.Len(), len(tt.data))
			}
		}
	})

	t.Run("overwrite updates data and version", func(t *testing.T) {
		v := newVault(t)
		if err := v.PutSnapshot(ctx, "h.db", strings.NewReader("one"), 3, 1); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}
		if err := v.PutSnapshot(ctx, "h.db", strings.NewReader("second"), 6, 2); err != nil {
			t.Fatalf("PutSnapshot() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetSnapshot(ctx, "h.db", &buf); err != nil {
			t.Fatalf("GetSnapshot() error = %v", err)
		}
		if buf.String() != "second" {
			t.Errorf("GetSnapshot() = %q, want %q", buf.String(), "second")
		}
		version, err := v.SnapshotVersion(ctx, "h.db")
		if err != nil {
			t.Fatalf("SnapshotVersion() error = %v", err)
		}
		if version != 2 {
			t.Errorf("SnapshotVersion() = %d, want 2", version)
		}
	})

	t.Run("missing snapshot", func(t *testing.T) {
		v := newVault(t)
		var buf bytes.Buffer
		err := v.GetSnapshot(ctx, "nope.db", &buf)
		if !errors.Is(err, scanlog.ErrSnapshotNotFound) {
			t.Errorf("GetSnapshot() error = %v, want ErrSnapshotNotFound", err)
		}
		version, err := v.SnapshotVersion(ctx, "nope.db")
		if err != nil || version != 0 {
			t.Errorf("SnapshotVersion() = %d, %v, want 0, nil", version, err)
		}
	})

	t.Run("size mismatch", func(t *testing.T) {
		v := newVault(t)
		if err := v.PutSnapshot(ctx, "h.db", strings.NewReader("abc"), 10, 1); err == nil {
			t.Error("PutSnapshot() expected size mismatch error")
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		v := newVault(t)
		for _, name := range []string{"", "../escape.db", "a/b.db", ".hidden"} {
			if err := v.PutSnapshot(ctx, name, strings.NewReader("x"), 1, 1); err == nil {
				t.Errorf("PutSnapshot(%q) expected error", name)
			}
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		if err := newVault(t).ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})
}

func TestMemoryVault(t *testing.T) {
	testVaultContract(t, func(t *testing.T) scanlog.Vault {
		return NewMemoryVault("mem")
	})
}

func TestFileSystemVault(t *testing.T) {
	testVaultContract(t, func(t *testing.T) scanlog.Vault {
		v, err := NewFileSystemVault("fs", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		return v
	})
}

func TestS3Vault(t *testing.T) {
	testVaultContract(t, func(t *testing.T) scanlog.Vault {
		return newS3VaultWithClient("s3", "bucket", "scanlog", newFakeS3())
	})
}
