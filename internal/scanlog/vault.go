package scanlog

import (
	"context"
	"errors"
	"io"
)

// ErrSnapshotNotFound is returned by a Vault when no snapshot has been
// published under the requested name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Vault stores published store snapshots. A snapshot is addressed by the
// store file name of its partition, e.g. "host.device.db".
type Vault interface {
	// PutSnapshot stores size bytes read from r under name, replacing any
	// previous snapshot. version is stored alongside for staleness checks.
	PutSnapshot(ctx context.Context, name string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the snapshot stored under name to w.
	GetSnapshot(ctx context.Context, name string, w io.Writer) error

	// SnapshotVersion returns the version of the snapshot stored under name,
	// or 0 if there is none.
	SnapshotVersion(ctx context.Context, name string) (int64, error)

	// ValidateSetup verifies that the vault is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
