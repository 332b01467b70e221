package filesystem

import (
	"path/filepath"
	"strings"
)

// Roots is a fixed set of directories paths are checked against.
type Roots struct {
	dirs []string
}

// NewRoots creates a Roots from dirs. Empty entries are ignored.
func NewRoots(dirs ...string) *Roots {
	r := &Roots{}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		r.dirs = append(r.dirs, canonical(d))
	}
	return r
}

// Dirs returns the canonical root directories.
func (r *Roots) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

// Contains reports whether p lies inside one of the roots once symlinks are
// followed. A Roots without directories contains nothing.
func (r *Roots) Contains(p string) bool {
	if p == "" {
		return false
	}
	p = canonical(p)
	for _, root := range r.dirs {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			continue
		}
		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// canonical returns the absolute, symlink-free form of p. Missing paths
// keep their cleaned absolute form.
func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}
