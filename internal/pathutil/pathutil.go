package pathutil

import (
	"path/filepath"
	"strings"
)

// NormalizePath converts all path separators to forward slashes.
// Go's os.Open/os.Stat accept forward slashes on all platforms.
func NormalizePath(p string) string {
	return filepath.ToSlash(p)
}

// WithinRoot reports whether path lies inside the tree rooted at root.
// Both paths are cleaned and compared with a separator-aware prefix
// test, so "/data/movies-extra" does not count as inside "/data/movies".
// The root itself counts as inside.
func WithinRoot(root, path string) bool {
	root = NormalizePath(filepath.Clean(root))
	path = NormalizePath(filepath.Clean(path))
	if root == "" || path == "" {
		return false
	}
	if root == path {
		return true
	}
	if root == "/" {
		return strings.HasPrefix(path, "/")
	}
	return strings.HasPrefix(path, root+"/")
}

// StrictlyWithin reports whether path lies inside root but is not root
// itself.
func StrictlyWithin(root, path string) bool {
	return WithinRoot(root, path) &&
		NormalizePath(filepath.Clean(root)) != NormalizePath(filepath.Clean(path))
}
