package scanlog

import "context"

// FileInput describes a file observation. Either Stat, or both Size and
// Mtime, must be supplied.
type FileInput struct {
	Host     string
	DeviceID string
	Folder   string
	Filename string
	Stat     *StatInfo
	Size     *int64
	Mtime    *float64
}

// FileQuery is the lookup used by AnyFileAtPath. Folder and DeviceID are
// optional filters; Where adds extra equality predicates keyed by column
// name (for example "code" to also filter by status).
type FileQuery struct {
	Host     string
	Filename string
	Folder   string
	DeviceID string
	Where    map[string]any
}

// Change is one upsert in a batch.
type Change struct {
	Key     Key
	Payload Payload
}

// Store is the state store for one (host, device) partition.
//
// For reads, an empty deviceID means "any device". For writes it is the
// literal no-device partition value.
type Store interface {
	// Write path

	// Upsert inserts the record if absent and sets every supplied payload
	// field. With an empty payload an existing record is left untouched.
	Upsert(ctx context.Context, key Key, payload Payload) error

	// UpsertBatch applies several upserts in one transaction.
	UpsertBatch(ctx context.Context, changes []Change) error

	// InsertFileRecord records a file observation with status DEFAULT.
	InsertFileRecord(ctx context.Context, in FileInput) error

	// InsertFolderRecord records a folder. An existing folder is unchanged.
	InsertFolderRecord(ctx context.Context, host, folder, deviceID string) error

	// UpdateFileStatus sets the status of an existing file record.
	UpdateFileStatus(ctx context.Context, host, folder, filename, deviceID string, status Status) (bool, error)

	// UpdateFolderStatus sets the status of an existing folder record.
	UpdateFolderStatus(ctx context.Context, host, folder, deviceID string, status Status) (bool, error)

	// UpdateFolderSize sets the aggregate size of an existing folder record.
	UpdateFolderSize(ctx context.Context, host, folder, deviceID string, size int64) (bool, error)

	// ResetFolders moves every non-pending folder record back to DEFAULT so
	// the next crawl revisits it. Returns the number of folders reset.
	ResetFolders(ctx context.Context, host, deviceID string) (int64, error)

	// UpdateChecksum is reserved for content-hash support.
	UpdateChecksum(ctx context.Context, key Key, checksum string) error

	// Read path

	// GetRecord returns the record with the given key, or nil.
	GetRecord(ctx context.Context, key Key) (*Record, error)

	// ListDeviceIDsByHost maps each host to the device ids it has records for.
	ListDeviceIDsByHost(ctx context.Context) (map[string][]string, error)

	// FilterFilesByStatus returns the file records of host with the status.
	FilterFilesByStatus(ctx context.Context, status Status, host, deviceID string) ([]*Record, error)

	// FolderSize returns the size stored on the folder's own record.
	FolderSize(ctx context.Context, host, folder, deviceID string) (int64, bool, error)

	// HasFolder reports whether the folder has a record.
	HasFolder(ctx context.Context, host, folder, deviceID string) (bool, error)

	// NextPendingFolder returns one folder with status DEFAULT. It does not
	// change the folder's status.
	NextPendingFolder(ctx context.Context, host, deviceID string) (string, bool, error)

	// AnyFileAtPath reports whether any record matches the query.
	AnyFileAtPath(ctx context.Context, q FileQuery) (bool, error)

	// ListFolderFiles returns the file records directly inside folder.
	ListFolderFiles(ctx context.Context, host, folder, deviceID string) ([]*Record, error)

	// CountByStatus counts the records of host per status.
	CountByStatus(ctx context.Context, host, deviceID string) (map[Status]int64, error)

	// Close releases the underlying handle.
	Close() error
}
