// Package settings stores the user-editable runtime configuration:
// source folders, destination roots, the catalog API key, and the
// auto-organize switch. Values live in the settings table so they
// survive restarts and can be edited through the API.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/store"
)

// FolderType tags a source folder with the kind of media it holds.
// Files under a MOVIES or TV folder are classified by the tag regardless
// of what their filenames suggest; MIXED folders rely on the parser.
type FolderType string

// Folder types.
const (
	FolderMovies FolderType = "MOVIES"
	FolderTV     FolderType = "TV"
	FolderMixed  FolderType = "MIXED"
)

// ValidFolderType checks whether s is a recognized folder type.
func ValidFolderType(s string) bool {
	switch FolderType(s) {
	case FolderMovies, FolderTV, FolderMixed:
		return true
	}
	return false
}

// SourceFolder is one scan root and its media-type tag.
type SourceFolder struct {
	Type FolderType `json:"type" yaml:"type"`
	Path string     `json:"path" yaml:"path"`
}

// Encode renders the folder in its "TYPE:path" persistence form.
func (f SourceFolder) Encode() string {
	return string(f.Type) + ":" + f.Path
}

// ParseSourceFolder decodes a "TYPE:path" string. An unrecognized or
// missing prefix leaves the whole string as the path with type MIXED,
// so untagged entries and Windows drive letters survive.
func ParseSourceFolder(raw string) SourceFolder {
	raw = strings.TrimSpace(raw)
	if parts := strings.SplitN(raw, ":", 2); len(parts) == 2 && ValidFolderType(parts[0]) {
		return SourceFolder{Type: FolderType(parts[0]), Path: parts[1]}
	}
	return SourceFolder{Type: FolderMixed, Path: raw}
}

// Settings is the full user-editable configuration.
type Settings struct {
	CatalogAPIKey string         `json:"catalogApiKey" yaml:"catalogApiKey"`
	SourceFolders []SourceFolder `json:"sourceFolders" yaml:"sourceFolders"`
	MoviesRoot    string         `json:"moviesRoot" yaml:"moviesRoot"`
	TVRoot        string         `json:"tvRoot" yaml:"tvRoot"`
	AutoOrganize  bool           `json:"autoOrganize" yaml:"autoOrganize"`
}

// Setting keys.
const (
	KeyCatalogAPIKey = "catalog_api_key"
	KeySourceFolders = "source_folders"
	KeyMoviesRoot    = "movies_root"
	KeyTVRoot        = "tv_root"
	KeyAutoOrganize  = "auto_organize"
)

// Sentinel errors surfaced to the job-start endpoints.
var (
	ErrNoSourceFolders     = errors.New("no source folders configured")
	ErrNoDestinationRoots  = errors.New("no destination roots configured")
	ErrInvalidSourceFolder = errors.New("invalid source folder")
)

// Service reads and writes settings.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewService creates a settings service.
func NewService(st *store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// Get returns the current settings. Unset keys yield zero values.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	values, err := s.store.AllSettings(ctx)
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		CatalogAPIKey: values[KeyCatalogAPIKey],
		MoviesRoot:    values[KeyMoviesRoot],
		TVRoot:        values[KeyTVRoot],
		AutoOrganize:  values[KeyAutoOrganize] == "true",
		SourceFolders: decodeSourceFolders(values[KeySourceFolders]),
	}
	return settings, nil
}

// Update validates and stores the full settings document, returning the
// stored state.
func (s *Service) Update(ctx context.Context, settings *Settings) (*Settings, error) {
	for _, folder := range settings.SourceFolders {
		if strings.TrimSpace(folder.Path) == "" {
			return nil, fmt.Errorf("%w: empty path", ErrInvalidSourceFolder)
		}
		if !ValidFolderType(string(folder.Type)) {
			return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidSourceFolder, folder.Type)
		}
	}

	pairs := map[string]string{
		KeyCatalogAPIKey: settings.CatalogAPIKey,
		KeySourceFolders: encodeSourceFolders(settings.SourceFolders),
		KeyMoviesRoot:    settings.MoviesRoot,
		KeyTVRoot:        settings.TVRoot,
		KeyAutoOrganize:  strconv.FormatBool(settings.AutoOrganize),
	}
	for key, value := range pairs {
		if err := s.store.SetSetting(ctx, key, value); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Int("sourceFolders", len(settings.SourceFolders)).
		Bool("autoOrganize", settings.AutoOrganize).
		Msg("Settings updated")

	return s.Get(ctx)
}

// SourceFolders returns the configured scan roots.
func (s *Service) SourceFolders(ctx context.Context) ([]SourceFolder, error) {
	raw, err := s.store.GetSetting(ctx, KeySourceFolders)
	if err != nil {
		return nil, err
	}
	return decodeSourceFolders(raw), nil
}

// CatalogAPIKey returns the stored catalog key, "" when unset.
func (s *Service) CatalogAPIKey(ctx context.Context) (string, error) {
	return s.store.GetSetting(ctx, KeyCatalogAPIKey)
}

// AutoOrganize reports whether successful scans should trigger an
// organize run.
func (s *Service) AutoOrganize(ctx context.Context) (bool, error) {
	raw, err := s.store.GetSetting(ctx, KeyAutoOrganize)
	if err != nil {
		return false, err
	}
	return raw == "true", nil
}

func encodeSourceFolders(folders []SourceFolder) string {
	encoded := make([]string, 0, len(folders))
	for _, folder := range folders {
		encoded = append(encoded, folder.Encode())
	}
	return strings.Join(encoded, "\n")
}

func decodeSourceFolders(raw string) []SourceFolder {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var folders []SourceFolder
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		folders = append(folders, ParseSourceFolder(line))
	}
	return folders
}
