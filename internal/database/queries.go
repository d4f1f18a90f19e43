package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"scanlog-go/internal/scanlog"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL for the files table. All statements are built from
// fixed column names; values are always bound as parameters.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const fileColumns = `host, device_id, folder, filename, code, ino, dev, size, mtime, md5`

const (
	sqlSelectDistinctHostDevices = `SELECT DISTINCT host, device_id FROM files ORDER BY host, device_id`

	sqlSelectFilesByStatus = `SELECT ` + fileColumns + ` FROM files
		WHERE host = ? AND filename != '' AND code = ?
		ORDER BY folder, filename`

	sqlCountByStatus = `SELECT code, COUNT(*) FROM files WHERE host = ?`

	sqlResetFolders = `UPDATE files SET code = ?
		WHERE host = ? AND filename = '' AND code != ?`
)

// column is one "name = ?" term of a SET or WHERE clause.
type column struct {
	name  string
	value any
}

// payloadColumns maps the supplied payload fields to their columns.
func payloadColumns(p scanlog.Payload) []column {
	var cols []column
	if p.Status != nil {
		cols = append(cols, column{"code", int64(*p.Status)})
	}
	if p.Inode != nil {
		cols = append(cols, column{"ino", *p.Inode})
	}
	if p.Device != nil {
		cols = append(cols, column{"dev", *p.Device})
	}
	if p.Size != nil {
		cols = append(cols, column{"size", *p.Size})
	}
	if p.Mtime != nil {
		cols = append(cols, column{"mtime", *p.Mtime})
	}
	if p.Checksum != nil {
		cols = append(cols, column{"md5", *p.Checksum})
	}
	return cols
}

// keyColumns returns the natural key as WHERE terms.
func keyColumns(k scanlog.Key) []column {
	return []column{
		{"host", k.Host},
		{"device_id", k.DeviceID},
		{"folder", k.Folder},
		{"filename", k.Filename},
	}
}

// whereClause joins terms with AND and returns the clause and its args.
func whereClause(terms []column) (string, []any) {
	if len(terms) == 0 {
		return "", nil
	}
	conds := make([]string, len(terms))
	args := make([]any, len(terms))
	for i, t := range terms {
		conds[i] = t.name + " = ?"
		args[i] = t.value
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Upsert inserts the key with the payload, or on a key conflict sets only
// the supplied payload fields. An empty payload leaves an existing row
// untouched.
func (q *Queries) Upsert(ctx context.Context, key scanlog.Key, p scanlog.Payload) error {
	cols := append(keyColumns(key), payloadColumns(p)...)

	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		marks[i] = "?"
		args[i] = c.value
	}

	action := "DO NOTHING"
	if set := cols[4:]; len(set) > 0 {
		assigns := make([]string, len(set))
		for i, c := range set {
			assigns[i] = fmt.Sprintf("%s = excluded.%s", c.name, c.name)
		}
		action = "DO UPDATE SET " + strings.Join(assigns, ", ")
	}

	query := fmt.Sprintf(
		`INSERT INTO files (%s) VALUES (%s) ON CONFLICT(host, device_id, folder, filename) %s`,
		strings.Join(names, ", "), strings.Join(marks, ", "), action,
	)
	_, err := q.db.ExecContext(ctx, query, args...)
	return err
}

// Update sets the payload fields on every row matching where.
func (q *Queries) Update(ctx context.Context, p scanlog.Payload, where []column) (int64, error) {
	set := payloadColumns(p)
	if len(set) == 0 {
		return 0, nil
	}

	assigns := make([]string, len(set))
	args := make([]any, 0, len(set)+len(where))
	for i, c := range set {
		assigns[i] = c.name + " = ?"
		args = append(args, c.value)
	}
	clause, whereArgs := whereClause(where)
	args = append(args, whereArgs...)

	res, err := q.db.ExecContext(ctx, `UPDATE files SET `+strings.Join(assigns, ", ")+clause, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SelectStatuses returns the status of every row matching where.
func (q *Queries) SelectStatuses(ctx context.Context, where []column) ([]scanlog.Status, error) {
	clause, args := whereClause(where)
	rows, err := q.db.QueryContext(ctx, `SELECT code FROM files`+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []scanlog.Status
	for rows.Next() {
		var code int64
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		statuses = append(statuses, scanlog.Status(code))
	}
	return statuses, rows.Err()
}

// SelectOne returns the first value of field for rows matching where, or
// sql.ErrNoRows.
func (q *Queries) SelectOne(ctx context.Context, field string, where []column, dest any) error {
	clause, args := whereClause(where)
	return q.db.QueryRowContext(ctx, `SELECT `+field+` FROM files`+clause+` ORDER BY rowid LIMIT 1`, args...).Scan(dest)
}

// SelectRecords returns all rows matching where, ordered by path.
func (q *Queries) SelectRecords(ctx context.Context, where []column) ([]*scanlog.Record, error) {
	clause, args := whereClause(where)
	rows, err := q.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files`+clause+` ORDER BY folder, filename`, args...)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// SelectFilesByStatus returns the file rows of host with the given status.
func (q *Queries) SelectFilesByStatus(ctx context.Context, host string, status scanlog.Status) ([]*scanlog.Record, error) {
	rows, err := q.db.QueryContext(ctx, sqlSelectFilesByStatus, host, int64(status))
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// SelectHostDevices returns the distinct (host, device_id) pairs.
func (q *Queries) SelectHostDevices(ctx context.Context) ([][2]string, error) {
	rows, err := q.db.QueryContext(ctx, sqlSelectDistinctHostDevices)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var host, deviceID string
		if err := rows.Scan(&host, &deviceID); err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]string{host, deviceID})
	}
	return pairs, rows.Err()
}

// CountByStatus counts the rows of host per status, optionally restricted
// to one device.
func (q *Queries) CountByStatus(ctx context.Context, host, deviceID string) (map[scanlog.Status]int64, error) {
	query, args := sqlCountByStatus, []any{host}
	if deviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, deviceID)
	}
	rows, err := q.db.QueryContext(ctx, query+` GROUP BY code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[scanlog.Status]int64)
	for rows.Next() {
		var code, n int64
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		counts[scanlog.Status(code)] = n
	}
	return counts, rows.Err()
}

// ResetFolders sets every non-pending folder row of host back to DEFAULT.
func (q *Queries) ResetFolders(ctx context.Context, host, deviceID string) (int64, error) {
	query := sqlResetFolders
	args := []any{int64(scanlog.StatusDefault), host, int64(scanlog.StatusDefault)}
	if deviceID != "" {
		query += ` AND device_id = ?`
		args = append(args, deviceID)
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRecords(rows *sql.Rows) ([]*scanlog.Record, error) {
	defer rows.Close()

	var records []*scanlog.Record
	for rows.Next() {
		var (
			r    scanlog.Record
			code int64
			md5  sql.NullString
		)
		if err := rows.Scan(
			&r.Host, &r.DeviceID, &r.Folder, &r.Filename,
			&code, &r.Inode, &r.Device, &r.Size, &r.Mtime, &md5,
		); err != nil {
			return nil, err
		}
		r.Status = scanlog.Status(code)
		if md5.Valid {
			checksum := md5.String
			r.Checksum = &checksum
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
