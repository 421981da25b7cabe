package config

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Payload is a results file found by DiscoverPayloads.
type Payload struct {
	Path    string // Absolute path
	Rel     string // Slash-separated path relative to the search root
	Size    int64
	ModTime time.Time
}

// DiscoverPayloads finds candidate results payloads under root matching the
// discovery patterns. Files and directories matched by the exclude patterns
// or by root/.dvignore are skipped, as is anything deeper than MaxDepth
// directories below root.
func DiscoverPayloads(root string, d DiscoveryConfig) ([]Payload, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if len(d.Patterns) == 0 {
		d.Patterns = DefaultDiscoveryPatterns()
	}
	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	exclude := append([]string(nil), d.Exclude...)
	ignored, err := readPatterns(filepath.Join(root, IgnoreFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", IgnoreFile, err)
	}
	exclude = append(exclude, ignored...)

	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var out []Payload
	for _, pattern := range d.Patterns {
		if !validPattern(pattern) {
			return nil, fmt.Errorf("pattern %q: %w", pattern, doublestar.ErrBadPattern)
		}
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		for _, rel := range matches {
			if seen[rel] || strings.Count(rel, "/") > maxDepth || excluded(rel, exclude) {
				continue
			}
			info, err := fs.Stat(fsys, rel)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			seen[rel] = true
			out = append(out, Payload{
				Path:    filepath.Join(root, filepath.FromSlash(rel)),
				Rel:     rel,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out, nil
}

// excluded reports whether rel or one of its parent directories matches a
// pattern. As in .gitignore, patterns with a leading or inner slash are
// anchored at the root; the rest match a name at any depth.
func excluded(rel string, patterns []string) bool {
	parts := strings.Split(rel, "/")
	for _, p := range patterns {
		p = strings.TrimSuffix(strings.TrimSpace(p), "/")
		anchored := strings.HasPrefix(p, "/")
		p = strings.TrimPrefix(p, "/")
		if p == "" {
			continue
		}
		anchored = anchored || strings.Contains(p, "/")
		for i := range parts {
			prefix := strings.Join(parts[:i+1], "/")
			candidate := prefix
			if !anchored {
				candidate = path.Base(prefix)
			}
			if ok, _ := doublestar.Match(p, candidate); ok {
				return true
			}
		}
	}
	return false
}

func validPattern(p string) bool {
	return doublestar.ValidatePattern(p)
}
