// Package filesystem provides the directory browser backing the
// configuration UI. Navigation is confined to a closed set of root
// prefixes; everything else is refused before the disk is touched.
package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/pathutil"
)

// Browse errors.
var (
	ErrPathNotAllowed = errors.New("path is outside the allowed roots")
	ErrPathNotFound   = errors.New("path does not exist")
	ErrNotDirectory   = errors.New("path is not a directory")
	ErrInvalidPath    = errors.New("invalid path")
)

// DirectoryEntry is one directory in a browse result.
type DirectoryEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// BrowseResult is the listing for one directory.
type BrowseResult struct {
	Path    string           `json:"path"`
	Parent  string           `json:"parent,omitempty"`
	Entries []DirectoryEntry `json:"entries"`
}

// Service lists directories under a fixed allow-list of roots.
type Service struct {
	allowedRoots []string
	logger       zerolog.Logger
}

// NewService creates a browser over the given allowed roots.
func NewService(allowedRoots []string, logger zerolog.Logger) *Service {
	roots := make([]string, 0, len(allowedRoots))
	for _, root := range allowedRoots {
		if root = strings.TrimSpace(root); root != "" {
			roots = append(roots, filepath.Clean(root))
		}
	}
	return &Service{
		allowedRoots: roots,
		logger:       logger.With().Str("component", "filesystem").Logger(),
	}
}

// Browse lists the directories directly under path. An empty path lists
// the allowed roots themselves.
func (s *Service) Browse(path string) (*BrowseResult, error) {
	if strings.TrimSpace(path) == "" {
		return s.browseRoots(), nil
	}

	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		return nil, ErrInvalidPath
	}
	if !s.allowed(cleaned) {
		return nil, ErrPathNotAllowed
	}

	info, err := os.Stat(cleaned)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPathNotFound
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	entries, err := os.ReadDir(cleaned)
	if err != nil {
		return nil, err
	}

	result := &BrowseResult{
		Path:    cleaned,
		Entries: []DirectoryEntry{},
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		result.Entries = append(result.Entries, DirectoryEntry{
			Name: entry.Name(),
			Path: filepath.Join(cleaned, entry.Name()),
		})
	}
	sort.Slice(result.Entries, func(i, j int) bool {
		return strings.ToLower(result.Entries[i].Name) < strings.ToLower(result.Entries[j].Name)
	})

	if parent := filepath.Dir(cleaned); parent != cleaned && s.allowed(parent) {
		result.Parent = parent
	}
	return result, nil
}

// browseRoots lists the allowed roots as a synthetic top level, skipping
// any that do not exist on this host.
func (s *Service) browseRoots() *BrowseResult {
	result := &BrowseResult{Entries: []DirectoryEntry{}}
	seen := map[string]bool{}
	for _, root := range s.allowedRoots {
		if seen[root] {
			continue
		}
		seen[root] = true
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		name := filepath.Base(root)
		if root == string(filepath.Separator) {
			name = root
		}
		result.Entries = append(result.Entries, DirectoryEntry{Name: name, Path: root})
	}
	sort.Slice(result.Entries, func(i, j int) bool {
		return result.Entries[i].Path < result.Entries[j].Path
	})
	return result
}

// allowed reports whether path falls under any allowed root. It is a
// pure path computation; the disk is never consulted.
func (s *Service) allowed(path string) bool {
	for _, root := range s.allowedRoots {
		if pathutil.WithinRoot(root, path) {
			return true
		}
	}
	return false
}
