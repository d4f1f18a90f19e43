package scanlog

import "strings"

// Unknown is the stored value for an inode, device number, size or mtime
// that has not been observed.
const Unknown = -1

// DefaultStoreName is the store file used when neither host nor device is
// supplied.
const DefaultStoreName = "index.db"

// Key is the natural key of a record. An empty Filename means the record
// describes the folder itself.
type Key struct {
	Host     string
	DeviceID string
	Folder   string
	Filename string
}

// IsFolder reports whether the key addresses a folder record.
func (k Key) IsFolder() bool {
	return k.Filename == ""
}

// Normalize validates the key and returns it with a normalized folder.
func (k Key) Normalize() (Key, error) {
	if k.Host == "" {
		return Key{}, &PreconditionError{Field: "host"}
	}
	folder, err := NormalizeFolder(k.Folder)
	if err != nil {
		return Key{}, err
	}
	k.Folder = folder
	return k, nil
}

// Payload holds the mutable fields of a record. Nil fields are left
// untouched by an upsert.
type Payload struct {
	Status   *Status
	Inode    *int64
	Device   *int64
	Size     *int64
	Mtime    *float64
	Checksum *string
}

// IsEmpty reports whether no field is set.
func (p Payload) IsEmpty() bool {
	return p.Status == nil && p.Inode == nil && p.Device == nil &&
		p.Size == nil && p.Mtime == nil && p.Checksum == nil
}

// WithStatus returns a copy of p with Status set.
func (p Payload) WithStatus(s Status) Payload {
	p.Status = &s
	return p
}

// WithSize returns a copy of p with Size set.
func (p Payload) WithSize(size int64) Payload {
	p.Size = &size
	return p
}

// WithMtime returns a copy of p with Mtime set.
func (p Payload) WithMtime(mtime float64) Payload {
	p.Mtime = &mtime
	return p
}

// WithStat returns a copy of p with inode, device, size and mtime taken
// from st.
func (p Payload) WithStat(st StatInfo) Payload {
	ino, dev := st.Inode, st.Device
	p.Inode = &ino
	p.Device = &dev
	return p.WithSize(st.Size).WithMtime(st.Mtime)
}

// Record is one stored row.
type Record struct {
	Key
	Status   Status
	Inode    int64
	Device   int64
	Size     int64
	Mtime    float64
	Checksum *string
}

// Path returns the absolute path of the record: the folder for folder
// records, folder+filename for files.
func (r *Record) Path() string {
	return r.Folder + r.Filename
}

// StatInfo is the stat-like metadata handed to the store, from either a
// local stat call or a remote listing. Remote listings leave Inode and
// Device at Unknown.
type StatInfo struct {
	Inode  int64
	Device int64
	Size   int64
	Mtime  float64
}

// RemoteStat builds a StatInfo for an entry that only carries size and mtime.
func RemoteStat(size int64, mtime float64) StatInfo {
	return StatInfo{Inode: Unknown, Device: Unknown, Size: size, Mtime: mtime}
}

// Partition selects the store file holding a host's (and optionally a
// device's) records.
type Partition struct {
	Host     string
	DeviceID string
}

// StoreName returns "{host}.{device}.db" with empty parts dropped, or
// defaultName when both are empty.
func (p Partition) StoreName(defaultName string) string {
	var parts []string
	for _, part := range []string{p.Host, p.DeviceID} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return defaultName
	}
	return strings.Join(parts, ".") + ".db"
}
