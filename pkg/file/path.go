package file

import (
	"path/filepath"
	"strings"
)

// Resolver converts between absolute paths and paths stored relative to a
// project root. Stored paths are always root-relative so the jobs file stays
// portable when the data root moves.
type Resolver struct {
	root string
}

func NewResolver(root string) Resolver {
	return Resolver{root: filepath.Clean(root)}
}

func (r Resolver) Root() string {
	return r.root
}

// Rel converts an absolute path to a root-relative one. If the path cannot be
// expressed relative to the root (different volume, escapes the root) it falls
// back to the bare file name rather than failing; the store must always remain
// writable.
func (r Resolver) Rel(path string) string {
	if path == "" || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return rel
}

// Abs converts a possibly root-relative path back to an absolute one. Already
// absolute paths pass through unchanged. No existence check is performed.
func (r Resolver) Abs(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.root, path)
}
