//go:build unix

package fs

import (
	"io/fs"
	"syscall"

	"scanlog-go/internal/scanlog"
)

// StatInfoFromFileInfo converts a FileInfo to the stored stat fields. Inode and device
// come from the raw stat_t.
func StatInfoFromFileInfo(info fs.FileInfo) scanlog.StatInfo {
	st := scanlog.StatInfo{
		Inode:  scanlog.Unknown,
		Device: scanlog.Unknown,
		Size:   info.Size(),
		Mtime:  mtimeSeconds(info),
	}
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		st.Inode = int64(sys.Ino)
		st.Device = int64(sys.Dev)
	}
	return st
}
