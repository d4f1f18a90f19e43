package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the crawl root for extra patterns.
const IgnoreFileName = ".scanlogignore"

type ignorePattern struct {
	glob     string
	anchored bool // contains '/': match the whole relative path
	dirOnly  bool // trailing '/': only match directories
	negate   bool // leading '!': re-include a previously ignored path
}

// IgnoreMatcher decides which crawl entries are skipped. Patterns follow a
// small gitignore subset: globs without '/' match the basename, globs with
// '/' match the path relative to the crawl root, a trailing '/' limits a
// pattern to directories and a leading '!' re-includes. The last matching
// pattern wins.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines, '#' comments and
// malformed globs are dropped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var p ignorePattern
		if strings.HasPrefix(line, "!") {
			p.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimRight(line, "/")
		}
		line = strings.TrimPrefix(line, "/")
		if line == "" {
			continue
		}
		if _, err := path.Match(line, ""); err != nil {
			continue
		}
		p.glob = line
		p.anchored = strings.Contains(line, "/")
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Match reports whether the entry at relativePath (relative to the crawl
// root) is ignored.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	if relativePath == "" {
		return false
	}
	rel := filepath.ToSlash(relativePath)
	base := path.Base(rel)

	ignored := false
	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		subject := base
		if p.anchored {
			subject = rel
		}
		if ok, _ := path.Match(p.glob, subject); ok {
			ignored = !p.negate
		}
	}
	return ignored
}

// ParseIgnoreFile returns the raw lines of an ignore file, or nil if it does
// not exist.
func ParseIgnoreFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
