// Package health reports the operational state of everything the
// pipeline depends on: the database, the configured folders, the
// catalog key, and the media probe.
package health

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/database"
	"github.com/mediastow/mediastow/internal/settings"
)

// Status grades a check result.
type Status string

// Statuses, ordered by severity.
const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Check is the outcome of probing one component.
type Check struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Report aggregates all checks with the worst status on top.
type Report struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks"`
}

// Prober reports whether the media probe binary is usable.
type Prober interface {
	Available() bool
}

// Service runs component checks on demand. Nothing is cached; every
// call reflects the current state.
type Service struct {
	db       *database.DB
	settings *settings.Service
	prober   Prober
	logger   zerolog.Logger
}

// NewService creates a health service.
func NewService(db *database.DB, settingsSvc *settings.Service, prober Prober, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		settings: settingsSvc,
		prober:   prober,
		logger:   logger.With().Str("component", "health").Logger(),
	}
}

// Check probes every component and returns the aggregate report. The
// only write it performs is a uuid-named temp file in each destination
// root, removed immediately.
func (s *Service) Check(ctx context.Context) *Report {
	var checks []Check

	checks = append(checks, s.checkDatabase(ctx))
	checks = append(checks, s.checkFolders(ctx)...)
	checks = append(checks, s.checkCatalogKey(ctx))
	checks = append(checks, s.checkProber())

	report := &Report{Status: StatusOK, Checks: checks}
	for _, c := range checks {
		if c.Status == StatusError {
			report.Status = StatusError
			break
		}
		if c.Status == StatusWarning {
			report.Status = StatusWarning
		}
	}
	return report
}

func (s *Service) checkDatabase(ctx context.Context) Check {
	if err := s.db.Conn().PingContext(ctx); err != nil {
		return Check{Name: "database", Status: StatusError, Message: err.Error()}
	}
	return Check{Name: "database", Status: StatusOK}
}

func (s *Service) checkFolders(ctx context.Context) []Check {
	current, err := s.settings.Get(ctx)
	if err != nil {
		return []Check{{Name: "settings", Status: StatusError, Message: err.Error()}}
	}

	var checks []Check

	if len(current.SourceFolders) == 0 {
		checks = append(checks, Check{
			Name:    "source-folders",
			Status:  StatusWarning,
			Message: "no source folders configured",
		})
	}
	for _, folder := range current.SourceFolders {
		checks = append(checks, checkReadableDir("source-folder", folder.Path))
	}

	checks = append(checks, s.checkDestinationRoot("movies-root", current.MoviesRoot))
	checks = append(checks, s.checkDestinationRoot("tv-root", current.TVRoot))

	return checks
}

func checkReadableDir(name, path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: name, Path: path, Status: StatusError, Message: "not accessible"}
	}
	if !info.IsDir() {
		return Check{Name: name, Path: path, Status: StatusError, Message: "not a directory"}
	}
	return Check{Name: name, Path: path, Status: StatusOK}
}

// checkDestinationRoot verifies the root exists and takes writes, by
// creating and removing a uuid-named temp file.
func (s *Service) checkDestinationRoot(name, path string) Check {
	if path == "" {
		return Check{Name: name, Status: StatusWarning, Message: "not configured"}
	}

	check := checkReadableDir(name, path)
	if check.Status != StatusOK {
		return check
	}

	probe := fmt.Sprintf("%s/.mediastow-%s.tmp", path, uuid.NewString())
	if err := os.WriteFile(probe, nil, 0o600); err != nil {
		return Check{Name: name, Path: path, Status: StatusError, Message: "not writable"}
	}
	if err := os.Remove(probe); err != nil {
		s.logger.Warn().Err(err).Str("path", probe).Msg("Failed to remove health probe file")
	}
	return Check{Name: name, Path: path, Status: StatusOK}
}

func (s *Service) checkCatalogKey(ctx context.Context) Check {
	key, err := s.settings.CatalogAPIKey(ctx)
	if err != nil {
		return Check{Name: "catalog-key", Status: StatusError, Message: err.Error()}
	}
	if key == "" {
		return Check{
			Name:    "catalog-key",
			Status:  StatusWarning,
			Message: "catalog API key not configured, enrichment disabled",
		}
	}
	return Check{Name: "catalog-key", Status: StatusOK}
}

func (s *Service) checkProber() Check {
	if s.prober == nil || !s.prober.Available() {
		return Check{
			Name:    "ffprobe",
			Status:  StatusWarning,
			Message: "ffprobe not found, duration probing disabled",
		}
	}
	return Check{Name: "ffprobe", Status: StatusOK}
}
