// Package fs lists local directories for the crawler.
package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"scanlog-go/internal/scanlog"
)

// OSLister implements scanlog.Lister on the local filesystem. Symlinks,
// devices, pipes and sockets are skipped, as is anything the ignore
// patterns match.
type OSLister struct {
	root   string
	ignore *IgnoreMatcher
	logger scanlog.Logger
}

// NewOSLister creates a lister for crawls under root. patterns are combined
// with those in root's ignore file.
func NewOSLister(root string, patterns []string, logger scanlog.Logger) (*OSLister, error) {
	if logger == nil {
		logger = scanlog.NewNopLogger()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving crawl root: %w", err)
	}

	fromFile, err := ParseIgnoreFile(filepath.Join(abs, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	lines := append([]string{IgnoreFileName}, patterns...)
	lines = append(lines, fromFile...)

	return &OSLister{
		root:   abs,
		ignore: NewIgnoreMatcher(lines),
		logger: logger,
	}, nil
}

// Root returns the absolute crawl root.
func (l *OSLister) Root() string {
	return l.root
}

// List reads folder (a normalized absolute path with trailing "/") and
// returns its children sorted by name.
func (l *OSLister) List(ctx context.Context, folder string) ([]scanlog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	entries := make([]scanlog.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		full := filepath.Join(folder, de.Name())
		mode := de.Type()
		if !mode.IsDir() && !mode.IsRegular() {
			l.logger.Debug("skipping special file", "path", full, "mode", mode.String())
			continue
		}
		if l.ignore.Match(l.relative(full), mode.IsDir()) {
			continue
		}

		if mode.IsDir() {
			entries = append(entries, scanlog.Entry{Name: de.Name(), IsDir: true})
			continue
		}

		info, err := de.Info()
		if err != nil {
			if os.IsNotExist(err) {
				// Removed since ReadDir.
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", full, err)
		}
		entries = append(entries, scanlog.Entry{Name: de.Name(), Stat: StatInfoFromFileInfo(info)})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Stat returns the metadata of the regular file at name. Symlinks are not
// followed.
func Stat(name string) (scanlog.StatInfo, error) {
	info, err := os.Lstat(name)
	if err != nil {
		return scanlog.StatInfo{}, err
	}
	if !info.Mode().IsRegular() {
		return scanlog.StatInfo{}, fmt.Errorf("not a regular file: %s", name)
	}
	return StatInfoFromFileInfo(info), nil
}

// relative returns p relative to the crawl root, or its basename when p is
// outside the root.
func (l *OSLister) relative(p string) string {
	rel, err := filepath.Rel(l.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(p)
	}
	return rel
}

func mtimeSeconds(info fs.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}

var _ scanlog.Lister = (*OSLister)(nil)
