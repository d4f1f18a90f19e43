package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"scanlog-go/internal/scanlog"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements scanlog.Store on one SQLite store file.
type SQLiteStore struct {
	db      *sql.DB
	queries *Queries
	path    string
	strict  bool
	logger  scanlog.Logger
}

// Options configures a SQLiteStore.
type Options struct {
	// StrictStatus rejects status changes not allowed by the transition table.
	StrictStatus bool
	Logger       scanlog.Logger
}

// NewSQLiteStore opens the existing store file at path. Use EnsureStore (or
// a Registry) to create it.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, &scanlog.StoreError{Op: "open", Err: err}
	}
	return NewSQLiteStoreFromDB(db, path, opts), nil
}

// NewSQLiteStoreFromDB wraps an existing connection.
// The caller is responsible for ensuring the schema has been applied.
func NewSQLiteStoreFromDB(db *sql.DB, path string, opts Options) *SQLiteStore {
	logger := opts.Logger
	if logger == nil {
		logger = scanlog.NewNopLogger()
	}
	return &SQLiteStore{
		db:      db,
		queries: NewQueries(db),
		path:    path,
		strict:  opts.StrictStatus,
		logger:  logger,
	}
}

// OpenConnection opens and configures a SQLite connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = storeDSN(path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Sole-writer pattern; also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// storeDSN builds the URI filename for path. The path is percent-encoded so
// '?', '#' and '%' in a directory or store name stay part of the file name.
func storeDSN(path string) string {
	u := url.URL{Scheme: "file", OmitHost: true, Path: path, RawQuery: "_busy_timeout=5000"}
	return u.String()
}

// Write path

func (s *SQLiteStore) Upsert(ctx context.Context, key scanlog.Key, payload scanlog.Payload) error {
	key, err := key.Normalize()
	if err != nil {
		return err
	}

	if s.strict && payload.Status != nil {
		return s.inTx(ctx, "upsert", func(q *Queries) error {
			if err := checkTransitions(ctx, q, keyColumns(key), *payload.Status); err != nil {
				return err
			}
			return q.Upsert(ctx, key, payload)
		})
	}

	if err := s.queries.Upsert(ctx, key, payload); err != nil {
		return &scanlog.StoreError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *SQLiteStore) UpsertBatch(ctx context.Context, changes []scanlog.Change) error {
	normalized := make([]scanlog.Change, len(changes))
	for i, c := range changes {
		key, err := c.Key.Normalize()
		if err != nil {
			return err
		}
		normalized[i] = scanlog.Change{Key: key, Payload: c.Payload}
	}

	return s.inTx(ctx, "upsert batch", func(q *Queries) error {
		for _, c := range normalized {
			if s.strict && c.Payload.Status != nil {
				if err := checkTransitions(ctx, q, keyColumns(c.Key), *c.Payload.Status); err != nil {
					return err
				}
			}
			if err := q.Upsert(ctx, c.Key, c.Payload); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) InsertFileRecord(ctx context.Context, in scanlog.FileInput) error {
	switch {
	case in.Host == "":
		return &scanlog.PreconditionError{Field: "host"}
	case in.Folder == "":
		return &scanlog.PreconditionError{Field: "folder"}
	case in.Filename == "":
		return &scanlog.PreconditionError{Field: "filename"}
	case in.Stat == nil && (in.Size == nil || in.Mtime == nil):
		return &scanlog.PreconditionError{Field: "stat or size and mtime"}
	}

	payload := scanlog.Payload{}.WithStatus(scanlog.StatusDefault)
	if in.Stat != nil {
		payload = payload.WithStat(*in.Stat)
	} else {
		payload = payload.WithSize(*in.Size).WithMtime(*in.Mtime)
	}

	return s.Upsert(ctx, scanlog.Key{
		Host:     in.Host,
		DeviceID: in.DeviceID,
		Folder:   in.Folder,
		Filename: in.Filename,
	}, payload)
}

func (s *SQLiteStore) InsertFolderRecord(ctx context.Context, host, folder, deviceID string) error {
	if folder == "" {
		return &scanlog.PreconditionError{Field: "folder"}
	}
	return s.Upsert(ctx, scanlog.Key{Host: host, DeviceID: deviceID, Folder: folder}, scanlog.Payload{})
}

func (s *SQLiteStore) UpdateFileStatus(ctx context.Context, host, folder, filename, deviceID string, status scanlog.Status) (bool, error) {
	if filename == "" {
		return false, &scanlog.PreconditionError{Field: "filename"}
	}
	where, err := recordFilter(host, folder, filename, deviceID)
	if err != nil {
		return false, err
	}
	return s.update(ctx, "update file status", scanlog.Payload{}.WithStatus(status), where)
}

func (s *SQLiteStore) UpdateFolderStatus(ctx context.Context, host, folder, deviceID string, status scanlog.Status) (bool, error) {
	where, err := recordFilter(host, folder, "", deviceID)
	if err != nil {
		return false, err
	}
	return s.update(ctx, "update folder status", scanlog.Payload{}.WithStatus(status), where)
}

func (s *SQLiteStore) UpdateFolderSize(ctx context.Context, host, folder, deviceID string, size int64) (bool, error) {
	where, err := recordFilter(host, folder, "", deviceID)
	if err != nil {
		return false, err
	}
	return s.update(ctx, "update folder size", scanlog.Payload{}.WithSize(size), where)
}

func (s *SQLiteStore) ResetFolders(ctx context.Context, host, deviceID string) (int64, error) {
	if host == "" {
		return 0, &scanlog.PreconditionError{Field: "host"}
	}
	n, err := s.queries.ResetFolders(ctx, host, deviceID)
	if err != nil {
		return 0, &scanlog.StoreError{Op: "reset folders", Err: err}
	}
	s.logger.Info("folders reset to pending", "host", host, "device_id", deviceID, "count", n)
	return n, nil
}

func (s *SQLiteStore) UpdateChecksum(ctx context.Context, key scanlog.Key, checksum string) error {
	return &scanlog.UnsupportedError{Op: "update checksum", Reason: "content hashing is not implemented"}
}

// update applies payload to the rows matching where and reports whether any
// row matched.
func (s *SQLiteStore) update(ctx context.Context, op string, payload scanlog.Payload, where []column) (bool, error) {
	var n int64
	run := func(q *Queries) error {
		if s.strict && payload.Status != nil {
			if err := checkTransitions(ctx, q, where, *payload.Status); err != nil {
				return err
			}
		}
		var err error
		n, err = q.Update(ctx, payload, where)
		return err
	}

	if s.strict {
		if err := s.inTx(ctx, op, run); err != nil {
			return false, err
		}
	} else if err := run(s.queries); err != nil {
		return false, &scanlog.StoreError{Op: op, Err: err}
	}
	return n > 0, nil
}

// Read path

func (s *SQLiteStore) GetRecord(ctx context.Context, key scanlog.Key) (*scanlog.Record, error) {
	key, err := key.Normalize()
	if err != nil {
		return nil, err
	}
	records, err := s.queries.SelectRecords(ctx, keyColumns(key))
	if err != nil {
		return nil, &scanlog.StoreError{Op: "get record", Err: err}
	}
	if len(records) == 0 {
		return nil, nil // Not found
	}
	return records[0], nil
}

func (s *SQLiteStore) ListDeviceIDsByHost(ctx context.Context) (map[string][]string, error) {
	pairs, err := s.queries.SelectHostDevices(ctx)
	if err != nil {
		return nil, &scanlog.StoreError{Op: "list device ids", Err: err}
	}

	hosts := make(map[string][]string)
	for _, p := range pairs {
		hosts[p[0]] = append(hosts[p[0]], p[1])
	}
	for _, ids := range hosts {
		sort.Strings(ids)
	}
	return hosts, nil
}

func (s *SQLiteStore) FilterFilesByStatus(ctx context.Context, status scanlog.Status, host, deviceID string) ([]*scanlog.Record, error) {
	if host == "" {
		return nil, &scanlog.PreconditionError{Field: "host"}
	}
	if deviceID != "" {
		return nil, &scanlog.UnsupportedError{Op: "filter files by status", Reason: "device-scoped filtering"}
	}
	records, err := s.queries.SelectFilesByStatus(ctx, host, status)
	if err != nil {
		return nil, &scanlog.StoreError{Op: "filter files by status", Err: err}
	}
	return records, nil
}

func (s *SQLiteStore) FolderSize(ctx context.Context, host, folder, deviceID string) (int64, bool, error) {
	where, err := recordFilter(host, folder, "", deviceID)
	if err != nil {
		return 0, false, err
	}

	var size int64
	if err := s.queries.SelectOne(ctx, "size", where, &size); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, &scanlog.StoreError{Op: "folder size", Err: err}
	}
	return size, true, nil
}

func (s *SQLiteStore) HasFolder(ctx context.Context, host, folder, deviceID string) (bool, error) {
	_, found, err := s.FolderSize(ctx, host, folder, deviceID)
	return found, err
}

func (s *SQLiteStore) NextPendingFolder(ctx context.Context, host, deviceID string) (string, bool, error) {
	if host == "" {
		return "", false, &scanlog.PreconditionError{Field: "host"}
	}
	where := []column{
		{"host", host},
		{"filename", ""},
		{"code", int64(scanlog.StatusDefault)},
	}
	if deviceID != "" {
		where = append(where, column{"device_id", deviceID})
	}

	var folder string
	if err := s.queries.SelectOne(ctx, "folder", where, &folder); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, &scanlog.StoreError{Op: "next pending folder", Err: err}
	}
	return folder, true, nil
}

// probeColumns are the columns AnyFileAtPath accepts as extra predicates.
var probeColumns = map[string]string{
	"code":   "code",
	"status": "code",
	"ino":    "ino",
	"dev":    "dev",
	"size":   "size",
	"mtime":  "mtime",
	"md5":    "md5",
}

func (s *SQLiteStore) AnyFileAtPath(ctx context.Context, q scanlog.FileQuery) (bool, error) {
	if q.Host == "" {
		return false, &scanlog.PreconditionError{Field: "host"}
	}
	where := []column{{"host", q.Host}, {"filename", q.Filename}}
	if q.Folder != "" {
		folder, err := scanlog.NormalizeFolder(q.Folder)
		if err != nil {
			return false, err
		}
		where = append(where, column{"folder", folder})
	}
	if q.DeviceID != "" {
		where = append(where, column{"device_id", q.DeviceID})
	}

	names := make([]string, 0, len(q.Where))
	for name := range q.Where {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		col, ok := probeColumns[name]
		if !ok {
			return false, &scanlog.UnsupportedError{Op: "any file at path", Reason: fmt.Sprintf("filter on column %q", name)}
		}
		value := q.Where[name]
		if status, ok := value.(scanlog.Status); ok {
			value = int64(status)
		}
		where = append(where, column{col, value})
	}

	var size int64
	if err := s.queries.SelectOne(ctx, "size", where, &size); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, &scanlog.StoreError{Op: "any file at path", Err: err}
	}
	return true, nil
}

func (s *SQLiteStore) ListFolderFiles(ctx context.Context, host, folder, deviceID string) ([]*scanlog.Record, error) {
	if host == "" {
		return nil, &scanlog.PreconditionError{Field: "host"}
	}
	normalized, err := scanlog.NormalizeFolder(folder)
	if err != nil {
		return nil, err
	}
	where := []column{{"host", host}, {"folder", normalized}}
	if deviceID != "" {
		where = append(where, column{"device_id", deviceID})
	}

	records, err := s.queries.SelectRecords(ctx, where)
	if err != nil {
		return nil, &scanlog.StoreError{Op: "list folder files", Err: err}
	}
	files := records[:0]
	for _, r := range records {
		if r.Filename != "" {
			files = append(files, r)
		}
	}
	return files, nil
}

func (s *SQLiteStore) CountByStatus(ctx context.Context, host, deviceID string) (map[scanlog.Status]int64, error) {
	if host == "" {
		return nil, &scanlog.PreconditionError{Field: "host"}
	}
	counts, err := s.queries.CountByStatus(ctx, host, deviceID)
	if err != nil {
		return nil, &scanlog.StoreError{Op: "count by status", Err: err}
	}
	return counts, nil
}

// Path returns the store file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the store schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return checkMigrations(s.db)
}

// BackupTo writes a consistent copy of the store to destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return &scanlog.StoreError{Op: "backup", Err: err}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// inTx runs fn in a transaction. Engine errors are wrapped in StoreError;
// domain errors returned by fn pass through unchanged.
func (s *SQLiteStore) inTx(ctx context.Context, op string, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &scanlog.StoreError{Op: op, Err: fmt.Errorf("starting transaction: %w", err)}
	}
	defer tx.Rollback()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		var transition *scanlog.TransitionError
		if errors.As(err, &transition) {
			return err
		}
		return &scanlog.StoreError{Op: op, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &scanlog.StoreError{Op: op, Err: fmt.Errorf("committing transaction: %w", err)}
	}
	return nil
}

// checkTransitions rejects the change when any matching row may not move to
// the target status.
func checkTransitions(ctx context.Context, q *Queries, where []column, to scanlog.Status) error {
	current, err := q.SelectStatuses(ctx, where)
	if err != nil {
		return err
	}
	for _, from := range current {
		if !from.CanTransitionTo(to) {
			return &scanlog.TransitionError{From: from, To: to}
		}
	}
	return nil
}

// recordFilter builds the WHERE terms addressing one folder or file record.
// The device filter is only applied when deviceID is set.
func recordFilter(host, folder, filename, deviceID string) ([]column, error) {
	if host == "" {
		return nil, &scanlog.PreconditionError{Field: "host"}
	}
	normalized, err := scanlog.NormalizeFolder(folder)
	if err != nil {
		return nil, err
	}
	where := []column{
		{"host", host},
		{"folder", normalized},
		{"filename", filename},
	}
	if deviceID != "" {
		where = append(where, column{"device_id", deviceID})
	}
	return where, nil
}

// Compile-time check that SQLiteStore implements scanlog.Store interface
var _ scanlog.Store = (*SQLiteStore)(nil)
