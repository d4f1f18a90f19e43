package scanlog

import (
	"path"
	"strings"
)

// NormalizeFolder canonicalizes a folder path to its stored form: it must be
// absolute, and a trailing slash is appended if missing.
func NormalizeFolder(folder string) (string, error) {
	if !strings.HasPrefix(folder, "/") {
		return "", &InvalidPathError{Path: folder}
	}
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	return folder, nil
}

// SplitPath splits an absolute file path into its normalized folder and
// base name. "/data/a.txt" becomes ("/data/", "a.txt").
func SplitPath(p string) (folder string, filename string, err error) {
	if !strings.HasPrefix(p, "/") {
		return "", "", &InvalidPathError{Path: p}
	}
	if strings.HasSuffix(p, "/") {
		return "", "", &InvalidPathError{Path: p}
	}
	dir, file := path.Split(p)
	folder, err = NormalizeFolder(dir)
	if err != nil {
		return "", "", err
	}
	return folder, file, nil
}
