package app

import (
	"context"
	"fmt"
	"path"
	"strings"

	localfs "scanlog-go/internal/fs"
	"scanlog-go/internal/scanlog"
)

type folderLookup interface {
	HasFolder(ctx context.Context, host, folder, deviceID string) (bool, error)
}

// treeLister lists local folders with the ignore rules of the crawl tree they
// belong to. A folder's tree root is its topmost ancestor recorded in the
// store, so a resumed crawl applies the same .scanlogignore and anchored
// patterns as the run that seeded it.
type treeLister struct {
	store    folderLookup
	host     string
	deviceID string
	patterns []string
	logger   scanlog.Logger

	roots   map[string]string
	listers map[string]*localfs.OSLister
}

func newTreeLister(store folderLookup, host, deviceID string, patterns []string, logger scanlog.Logger) *treeLister {
	return &treeLister{
		store:    store,
		host:     host,
		deviceID: deviceID,
		patterns: patterns,
		logger:   logger,
		roots:    make(map[string]string),
		listers:  make(map[string]*localfs.OSLister),
	}
}

func (l *treeLister) List(ctx context.Context, folder string) ([]scanlog.Entry, error) {
	root, err := l.rootOf(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("resolving crawl root of %s: %w", folder, err)
	}

	lister, ok := l.listers[root]
	if !ok {
		if lister, err = localfs.NewOSLister(root, l.patterns, l.logger); err != nil {
			return nil, err
		}
		l.listers[root] = lister
		l.logger.Debug("crawl tree", "root", root)
	}
	return lister.List(ctx, folder)
}

// rootOf walks up from folder while the parent is a recorded folder.
func (l *treeLister) rootOf(ctx context.Context, folder string) (string, error) {
	if root, ok := l.roots[folder]; ok {
		return root, nil
	}

	root := folder
	for root != "/" {
		parent := parentFolder(root)
		if known, ok := l.roots[parent]; ok {
			root = known
			break
		}
		found, err := l.store.HasFolder(ctx, l.host, parent, l.deviceID)
		if err != nil {
			return "", err
		}
		if !found {
			break
		}
		root = parent
	}

	l.roots[folder] = root
	return root, nil
}

// parentFolder returns the normalized parent of a normalized folder.
func parentFolder(folder string) string {
	parent := path.Dir(strings.TrimSuffix(folder, "/"))
	if parent == "/" {
		return parent
	}
	return parent + "/"
}

var _ scanlog.Lister = (*treeLister)(nil)
