package scanlog

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

// Entry is one child of a listed folder.
type Entry struct {
	Name  string
	IsDir bool
	Stat  StatInfo
}

// Lister enumerates the direct children of a folder. Implementations exist
// for the local filesystem and for pre-fetched remote listings.
type Lister interface {
	List(ctx context.Context, folder string) ([]Entry, error)
}

// StaticLister serves a listing held in memory, such as the (folder,
// filename, size, mtime) tuples returned by a remote backup service.
// Parent folders are registered implicitly. Safe for concurrent use.
type StaticLister struct {
	mu      sync.RWMutex
	folders map[string]map[string]Entry
}

// NewStaticLister creates an empty StaticLister.
func NewStaticLister() *StaticLister {
	return &StaticLister{folders: make(map[string]map[string]Entry)}
}

// AddFile registers a file at the absolute path p.
func (l *StaticLister) AddFile(p string, st StatInfo) error {
	folder, name, err := SplitPath(p)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.addFolderLocked(folder)
	l.folders[folder][name] = Entry{Name: name, Stat: st}
	return nil
}

// AddDir registers an (possibly empty) folder at the absolute path p.
func (l *StaticLister) AddDir(p string) error {
	folder, err := NormalizeFolder(p)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.addFolderLocked(folder)
	return nil
}

// addFolderLocked registers folder and links it into every ancestor.
func (l *StaticLister) addFolderLocked(folder string) {
	for {
		if _, ok := l.folders[folder]; !ok {
			l.folders[folder] = make(map[string]Entry)
		}
		trimmed := strings.TrimSuffix(folder, "/")
		if trimmed == "" {
			return
		}
		idx := strings.LastIndex(trimmed, "/")
		parent, name := trimmed[:idx+1], trimmed[idx+1:]
		if _, ok := l.folders[parent]; !ok {
			l.folders[parent] = make(map[string]Entry)
		}
		l.folders[parent][name] = Entry{Name: name, IsDir: true, Stat: RemoteStat(Unknown, Unknown)}
		folder = parent
	}
}

// List returns the children of folder sorted by name.
func (l *StaticLister) List(ctx context.Context, folder string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	folder, err := NormalizeFolder(folder)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	children, ok := l.folders[folder]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", folder, fs.ErrNotExist)
	}

	entries := make([]Entry, 0, len(children))
	for _, e := range children {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

var _ Lister = (*StaticLister)(nil)
