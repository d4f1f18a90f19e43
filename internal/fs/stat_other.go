//go:build !unix

package fs

import (
	"io/fs"

	"scanlog-go/internal/scanlog"
)

func StatInfoFromFileInfo(info fs.FileInfo) scanlog.StatInfo {
	return scanlog.StatInfo{
		Inode:  scanlog.Unknown,
		Device: scanlog.Unknown,
		Size:   info.Size(),
		Mtime:  mtimeSeconds(info),
	}
}
