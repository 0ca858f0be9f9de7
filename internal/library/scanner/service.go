package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/catalog/tmdb"
	"github.com/mediastow/mediastow/internal/jobs"
	"github.com/mediastow/mediastow/internal/library/organizer"
	"github.com/mediastow/mediastow/internal/progress"
	"github.com/mediastow/mediastow/internal/settings"
	"github.com/mediastow/mediastow/internal/store"
)

// catalogMatchBonus is added to an item's confidence when the catalog
// confirms the parsed title.
const catalogMatchBonus = 20

// CatalogClient looks up titles in the metadata catalog. Lookups that
// find nothing return nil without error.
type CatalogClient interface {
	SearchMovie(ctx context.Context, name string, year *int) (*tmdb.Result, error)
	SearchTV(ctx context.Context, name string) (*tmdb.Result, error)
	GetEpisodeTitle(ctx context.Context, seriesID int64, season, episode int) (string, error)
}

// DurationProber measures playback duration. A nil result means the
// file could not be probed.
type DurationProber interface {
	Duration(ctx context.Context, path string) *float64
}

// DuplicateDetector resolves a candidate item to the primary it
// duplicates, if any.
type DuplicateDetector interface {
	FindPrimary(ctx context.Context, candidate *store.MediaItem) (*int64, error)
}

// Organizer starts organization runs. It is wired in after construction
// because the organizer in turn consumes scan results.
type Organizer interface {
	StartOrganize(ctx context.Context, ids []int64) (*store.OrganizeJob, error)
}

// Service drives reconciliation of the configured source folders into
// the media item set.
type Service struct {
	store       *store.Store
	settings    *settings.Service
	catalog     CatalogClient
	prober      DurationProber
	duplicates  DuplicateDetector
	coordinator *jobs.Coordinator
	progress    *progress.Publisher
	logger      zerolog.Logger

	mu        sync.Mutex
	organizer Organizer
}

// NewService creates a scan service.
func NewService(
	st *store.Store,
	settingsSvc *settings.Service,
	catalog CatalogClient,
	prober DurationProber,
	duplicates DuplicateDetector,
	coordinator *jobs.Coordinator,
	publisher *progress.Publisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:       st,
		settings:    settingsSvc,
		catalog:     catalog,
		prober:      prober,
		duplicates:  duplicates,
		coordinator: coordinator,
		progress:    publisher,
		logger:      logger.With().Str("component", "scanner").Logger(),
	}
}

// SetOrganizer wires the organizer used for auto-organize after a scan.
func (s *Service) SetOrganizer(org Organizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizer = org
}

func (s *Service) getOrganizer() Organizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.organizer
}

// StartScan creates a scan job and runs the scan in the background.
// It fails with jobs.ErrAlreadyRunning while another scan is active and
// with settings.ErrNoSourceFolders when no source folder is configured.
func (s *Service) StartScan(ctx context.Context) (*store.ScanJob, error) {
	folders, err := s.settings.SourceFolders(ctx)
	if err != nil {
		return nil, err
	}
	if len(folders) == 0 {
		return nil, settings.ErrNoSourceFolders
	}

	if err := s.coordinator.Acquire(jobs.KindScan); err != nil {
		return nil, err
	}

	job, err := s.store.CreateScanJob(ctx)
	if err != nil {
		s.coordinator.Release(jobs.KindScan)
		return nil, err
	}

	go s.run(job, folders)

	return job, nil
}

// Job returns a scan job by id, or nil when it does not exist.
func (s *Service) Job(ctx context.Context, id int64) (*store.ScanJob, error) {
	return s.store.GetScanJob(ctx, id)
}

// LatestJob returns the most recent scan job, or nil when none exists.
func (s *Service) LatestJob(ctx context.Context) (*store.ScanJob, error) {
	return s.store.LatestScanJob(ctx)
}

// run owns the whole lifetime of one scan job. It deliberately uses a
// fresh context so an abandoned HTTP request cannot abort the scan.
func (s *Service) run(job *store.ScanJob, folders []settings.SourceFolder) {
	ctx := context.Background()
	defer s.coordinator.Release(jobs.KindScan)

	s.logger.Info().Int64("jobId", job.ID).Int("folders", len(folders)).Msg("Scan started")

	job.Status = store.JobRunning
	if err := s.store.UpdateScanJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Int64("jobId", job.ID).Msg("Failed to mark scan job running")
	}

	err := s.scan(ctx, job, folders)

	now := time.Now().UTC()
	job.CompletedAt = &now
	if err != nil {
		job.Status = store.JobFailed
		job.Error = err.Error()
		s.logger.Error().Err(err).Int64("jobId", job.ID).Msg("Scan failed")
	} else {
		job.Status = store.JobCompleted
		s.logger.Info().
			Int64("jobId", job.ID).
			Int("totalFiles", job.TotalFiles).
			Int("newItems", job.NewItems).
			Int("errors", job.ErrorsCount).
			Msg("Scan completed")
	}
	if err := s.store.UpdateScanJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Int64("jobId", job.ID).Msg("Failed to finalize scan job")
	}
	s.progress.ScanDone(job.ID, job.Status)

	if err == nil {
		s.maybeAutoOrganize(ctx)
	}
}

// scan walks every source folder twice: once to size the job, once to
// process files. Per-file trouble increments the error counter and
// moves on; only store or traversal failures abort the job.
func (s *Service) scan(ctx context.Context, job *store.ScanJob, folders []settings.SourceFolder) error {
	current, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	layout := organizer.Layout{MoviesRoot: current.MoviesRoot, TVRoot: current.TVRoot}

	countError := func(path string, err error) {
		job.ErrorsCount++
		s.logger.Warn().Err(err).Str("path", path).Msg("Scan entry skipped")
	}

	total := 0
	for _, folder := range folders {
		err := walkVideoFiles(ctx, folder.Path, func(FoundFile) error {
			total++
			return nil
		}, countError)
		if err != nil {
			return err
		}
	}

	job.TotalFiles = total
	if err := s.store.UpdateScanJob(ctx, job); err != nil {
		return err
	}
	s.progress.ScanProgress(job)

	for _, folder := range folders {
		err := walkVideoFiles(ctx, folder.Path, func(f FoundFile) error {
			s.processFile(ctx, job, folder, f, layout)

			job.ProcessedFiles++
			job.CurrentFolder = f.Dir
			if err := s.store.UpdateScanJob(ctx, job); err != nil {
				s.logger.Warn().Err(err).Int64("jobId", job.ID).Msg("Failed to persist scan progress")
			}
			s.progress.ScanProgress(job)
			return nil
		}, countError)
		if err != nil {
			return err
		}
	}

	return nil
}

// processFile reconciles one discovered file with the store.
func (s *Service) processFile(ctx context.Context, job *store.ScanJob, folder settings.SourceFolder, f FoundFile, layout organizer.Layout) {
	existing, err := s.store.GetItemByOriginal(ctx, f.Path, f.Name)
	if err != nil {
		job.ErrorsCount++
		s.logger.Error().Err(err).Str("path", f.Path).Msg("Item lookup failed")
		return
	}

	// Unchanged since the last scan: nothing to reconcile.
	if existing != nil && existing.FileSize == f.Size {
		return
	}

	// A manual override freezes every derived field; only the size may
	// be refreshed.
	if existing != nil && existing.ManualOverride {
		if err := s.store.UpdateItemFileSize(ctx, existing.ID, f.Size); err != nil {
			job.ErrorsCount++
			s.logger.Error().Err(err).Int64("itemId", existing.ID).Msg("File size refresh failed")
		}
		return
	}

	parsed := Parse(f.Name, f.Dir)
	applyFolderType(parsed, folder.Type)

	item := &store.MediaItem{
		OriginalPath:     f.Path,
		OriginalFilename: f.Name,
		FileSize:         f.Size,
		Extension:        strings.ToLower(filepath.Ext(f.Name)),
		DetectedType:     parsed.DetectedType,
		DetectedName:     parsed.DetectedName,
		CleanedName:      parsed.CleanedName,
		Year:             parsed.Year,
		Season:           parsed.Season,
		Episode:          parsed.Episode,
		EpisodeEnd:       parsed.EpisodeEnd,
		IsSeasonPack:     parsed.IsSeasonPack,
		Confidence:       parsed.Confidence,
		Status:           store.StatusPending,
	}
	if existing != nil {
		item.ID = existing.ID
		item.Status = existing.Status
		item.DestinationPath = existing.DestinationPath
		item.CreatedAt = existing.CreatedAt
	}

	s.enrich(ctx, item)
	item.DurationSeconds = s.prober.Duration(ctx, f.Path)

	primary, err := s.duplicates.FindPrimary(ctx, item)
	if err != nil {
		job.ErrorsCount++
		s.logger.Error().Err(err).Str("path", f.Path).Msg("Duplicate detection failed")
		return
	}
	item.DuplicateOf = primary

	if existing == nil {
		// A file scanning finds at its own canonical destination needs no
		// move; it enters the set as organized in place.
		if organizer.IsAlreadyOrganized(item, layout) {
			item.Status = store.StatusOrganized
			item.DestinationPath = item.OriginalPath
		}
		if _, err := s.store.InsertItem(ctx, item); err != nil {
			job.ErrorsCount++
			s.logger.Error().Err(err).Str("path", f.Path).Msg("Item insert failed")
			return
		}
		job.NewItems++
		return
	}

	if err := s.store.UpdateItem(ctx, item); err != nil {
		job.ErrorsCount++
		s.logger.Error().Err(err).Int64("itemId", item.ID).Msg("Item update failed")
	}
}

// enrich consults the catalog for the parsed title. Catalog trouble is
// logged and otherwise ignored; the item simply stays unenriched.
func (s *Service) enrich(ctx context.Context, item *store.MediaItem) {
	if item.CleanedName == "" {
		return
	}

	switch item.DetectedType {
	case store.TypeMovie:
		result, err := s.catalog.SearchMovie(ctx, item.CleanedName, item.Year)
		if err != nil {
			s.logger.Warn().Err(err).Str("name", item.CleanedName).Msg("Movie lookup failed")
			return
		}
		if result == nil {
			return
		}
		s.applyCatalogResult(item, result)

	case store.TypeTV:
		result, err := s.catalog.SearchTV(ctx, item.CleanedName)
		if err != nil {
			s.logger.Warn().Err(err).Str("name", item.CleanedName).Msg("TV lookup failed")
			return
		}
		if result == nil {
			return
		}
		s.applyCatalogResult(item, result)

		if item.Season != nil && item.Episode != nil {
			title, err := s.catalog.GetEpisodeTitle(ctx, result.ID, *item.Season, *item.Episode)
			if err != nil {
				s.logger.Warn().Err(err).Int64("seriesId", result.ID).Msg("Episode title lookup failed")
				return
			}
			item.EpisodeTitle = title
		}
	}
}

func (s *Service) applyCatalogResult(item *store.MediaItem, result *tmdb.Result) {
	item.TMDBID = &result.ID
	item.TMDBName = result.Name
	item.PosterPath = result.PosterPath
	if result.Year != nil {
		item.Year = result.Year
	}
	item.Confidence = clampConfidence(item.Confidence + catalogMatchBonus)
}

// applyFolderType forces the classification implied by a tagged source
// folder. Mixed folders trust the parser.
func applyFolderType(parsed *ParsedMedia, folderType settings.FolderType) {
	switch folderType {
	case settings.FolderMovies:
		parsed.DetectedType = store.TypeMovie
	case settings.FolderTV:
		parsed.DetectedType = store.TypeTV
	}
}

// maybeAutoOrganize starts an organize run over the organizable pending
// items when the setting is enabled. A run already in flight is fine.
func (s *Service) maybeAutoOrganize(ctx context.Context) {
	auto, err := s.settings.AutoOrganize(ctx)
	if err != nil || !auto {
		return
	}

	org := s.getOrganizer()
	if org == nil {
		return
	}

	items, err := s.store.ListItems(ctx, store.ItemFilter{Status: store.StatusPending})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Auto-organize listing failed")
		return
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if item.IsSeasonPack || item.DuplicateOf != nil {
			continue
		}
		if item.DetectedType != store.TypeMovie && item.DetectedType != store.TypeTV {
			continue
		}
		ids = append(ids, item.ID)
	}
	if len(ids) == 0 {
		return
	}

	if _, err := org.StartOrganize(ctx, ids); err != nil {
		if errors.Is(err, jobs.ErrAlreadyRunning) {
			s.logger.Debug().Msg("Auto-organize skipped, organize already running")
			return
		}
		s.logger.Warn().Err(err).Msg("Auto-organize failed to start")
		return
	}
	s.logger.Info().Int("items", len(ids)).Msg("Auto-organize started")
}
