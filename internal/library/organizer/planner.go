// Package organizer plans canonical destination paths for media items
// and executes the moves that put them there.
package organizer

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mediastow/mediastow/internal/pathutil"
	"github.com/mediastow/mediastow/internal/store"
)

// Layout holds the configured destination roots.
type Layout struct {
	MoviesRoot string
	TVRoot     string
}

// Planner errors, surfaced per item during an organize run.
var (
	ErrUnknownMediaType = errors.New("item type cannot be organized")
	ErrNoMoviesRoot     = errors.New("movies destination root not configured")
	ErrNoTVRoot         = errors.New("tv destination root not configured")
	ErrNoUsableName     = errors.New("item has no usable name")
)

var (
	reSeasonFolder = regexp.MustCompile(`^Season \d{2,}$`)
	reTitledFolder = regexp.MustCompile(`^.+ \((\d{4}|Unknown)\)$`)
	reMultiSpace   = regexp.MustCompile(`\s+`)
)

// invalidPathChars strips characters that are not portable across
// filesystems. Colons are handled separately so titles like
// "Mission: Impossible" keep a readable separator.
var invalidPathChars = strings.NewReplacer(
	"<", "", ">", "", `"`, "", "/", "", `\`, "", "|", "", "?", "", "*", "",
)

// Plan computes the canonical destination path for item. It is a pure
// function of the item and the layout; it never touches the filesystem.
func Plan(item *store.MediaItem, layout Layout) (string, error) {
	name := displayName(item)
	if name == "" {
		return "", ErrNoUsableName
	}
	ext := item.Extension
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(item.OriginalFilename))
	}

	switch item.DetectedType {
	case store.TypeMovie:
		if layout.MoviesRoot == "" {
			return "", ErrNoMoviesRoot
		}
		folder := fmt.Sprintf("%s (%s)", name, yearLabel(item.Year))
		return filepath.Join(layout.MoviesRoot, folder, folder+ext), nil

	case store.TypeTV:
		if layout.TVRoot == "" {
			return "", ErrNoTVRoot
		}
		season := 1
		if item.Season != nil {
			season = *item.Season
		}
		episode := 1
		if item.Episode != nil {
			episode = *item.Episode
		}
		file := fmt.Sprintf("%s - S%02dE%02d", name, season, episode)
		if item.EpisodeEnd != nil && *item.EpisodeEnd != episode {
			file += fmt.Sprintf("-E%02d", *item.EpisodeEnd)
		}
		return filepath.Join(
			layout.TVRoot,
			name,
			fmt.Sprintf("Season %02d", season),
			file+ext,
		), nil

	default:
		return "", ErrUnknownMediaType
	}
}

// IsAlreadyOrganized reports whether the item's file already sits where
// organization would put it: either exactly at the planned path, or
// under the matching destination root inside a canonically named
// folder.
func IsAlreadyOrganized(item *store.MediaItem, layout Layout) bool {
	if planned, err := Plan(item, layout); err == nil &&
		filepath.Clean(planned) == filepath.Clean(item.OriginalPath) {
		return true
	}

	var root string
	switch item.DetectedType {
	case store.TypeMovie:
		root = layout.MoviesRoot
	case store.TypeTV:
		root = layout.TVRoot
	default:
		return false
	}
	if root == "" || !pathutil.WithinRoot(root, item.OriginalPath) {
		return false
	}
	if filepath.Clean(filepath.Dir(item.OriginalPath)) == filepath.Clean(root) {
		return false
	}

	parent := filepath.Base(filepath.Dir(item.OriginalPath))
	return reSeasonFolder.MatchString(parent) || reTitledFolder.MatchString(parent)
}

// displayName picks the best rendering of the item's title.
func displayName(item *store.MediaItem) string {
	for _, name := range []string{item.TMDBName, item.CleanedName, item.DetectedName} {
		if sanitized := sanitizeName(name); sanitized != "" {
			return sanitized
		}
	}
	return ""
}

func yearLabel(year *int) string {
	if year == nil {
		return "Unknown"
	}
	return fmt.Sprintf("%d", *year)
}

// sanitizeName makes a title safe to use as a path component.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, ":", " -")
	name = invalidPathChars.Replace(name)
	name = reMultiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
