package organizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/history"
	"github.com/mediastow/mediastow/internal/jobs"
	"github.com/mediastow/mediastow/internal/pathutil"
	"github.com/mediastow/mediastow/internal/progress"
	"github.com/mediastow/mediastow/internal/settings"
	"github.com/mediastow/mediastow/internal/store"
)

// Undo errors.
var (
	ErrItemNotFound = errors.New("item not found")
	ErrNotOrganized = errors.New("item is not organized")
)

// Service executes organization runs: it plans destinations, moves
// files, and records the outcome per item.
type Service struct {
	store       *store.Store
	settings    *settings.Service
	history     *history.Service
	coordinator *jobs.Coordinator
	progress    *progress.Publisher
	logger      zerolog.Logger
}

// NewService creates an organize service.
func NewService(
	st *store.Store,
	settingsSvc *settings.Service,
	historySvc *history.Service,
	coordinator *jobs.Coordinator,
	publisher *progress.Publisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		store:       st,
		settings:    settingsSvc,
		history:     historySvc,
		coordinator: coordinator,
		progress:    publisher,
		logger:      logger.With().Str("component", "organizer").Logger(),
	}
}

// StartOrganize creates an organize job for the given item ids and runs
// it in the background. It fails with jobs.ErrAlreadyRunning while
// another organize run is active and with settings.ErrNoDestinationRoots
// when neither destination root is configured.
func (s *Service) StartOrganize(ctx context.Context, ids []int64) (*store.OrganizeJob, error) {
	current, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	layout := Layout{MoviesRoot: current.MoviesRoot, TVRoot: current.TVRoot}
	if layout.MoviesRoot == "" && layout.TVRoot == "" {
		return nil, settings.ErrNoDestinationRoots
	}

	if err := s.coordinator.Acquire(jobs.KindOrganize); err != nil {
		return nil, err
	}

	job, err := s.store.CreateOrganizeJob(ctx)
	if err != nil {
		s.coordinator.Release(jobs.KindOrganize)
		return nil, err
	}

	go s.run(job, ids, layout)

	return job, nil
}

// Job returns an organize job by id, or nil when it does not exist.
func (s *Service) Job(ctx context.Context, id int64) (*store.OrganizeJob, error) {
	return s.store.GetOrganizeJob(ctx, id)
}

// LatestJob returns the most recent organize job, or nil when none
// exists.
func (s *Service) LatestJob(ctx context.Context) (*store.OrganizeJob, error) {
	return s.store.LatestOrganizeJob(ctx)
}

// run owns the whole lifetime of one organize job. Per-item trouble is
// counted and logged; it never aborts the run.
func (s *Service) run(job *store.OrganizeJob, ids []int64, layout Layout) {
	ctx := context.Background()
	defer s.coordinator.Release(jobs.KindOrganize)

	s.logger.Info().Int64("jobId", job.ID).Int("items", len(ids)).Msg("Organize started")

	job.Status = store.JobRunning
	job.TotalFiles = len(ids)
	if err := s.store.UpdateOrganizeJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Int64("jobId", job.ID).Msg("Failed to mark organize job running")
	}
	s.progress.OrganizeProgress(job)

	for _, id := range ids {
		s.processItem(ctx, job, id, layout)

		job.ProcessedFiles++
		if err := s.store.UpdateOrganizeJob(ctx, job); err != nil {
			s.logger.Warn().Err(err).Int64("jobId", job.ID).Msg("Failed to persist organize progress")
		}
		s.progress.OrganizeProgress(job)
	}

	now := time.Now().UTC()
	job.CompletedAt = &now
	job.Status = store.JobCompleted
	if err := s.store.UpdateOrganizeJob(ctx, job); err != nil {
		s.logger.Error().Err(err).Int64("jobId", job.ID).Msg("Failed to finalize organize job")
	}
	s.progress.OrganizeDone(job.ID, job.Status)

	s.logger.Info().
		Int64("jobId", job.ID).
		Int("succeeded", job.SuccessCount).
		Int("failed", job.FailedCount).
		Msg("Organize completed")
}

func (s *Service) processItem(ctx context.Context, job *store.OrganizeJob, id int64, layout Layout) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil || item == nil {
		job.FailedCount++
		msg := fmt.Sprintf("item %d not found", id)
		if err != nil {
			msg = fmt.Sprintf("item %d: %v", id, err)
		}
		s.history.RecordError(ctx, nil, "", msg)
		s.logger.Warn().Int64("itemId", id).Msg("Organize skipped missing item")
		return
	}
	job.CurrentFile = item.OriginalFilename

	// Counters advance for these, but nothing else happens: they are
	// not organizable, not failures.
	if item.Status != store.StatusPending || item.IsSeasonPack {
		return
	}

	dest, err := Plan(item, layout)
	if err != nil {
		s.failItem(ctx, job, item, err.Error())
		return
	}

	source := item.OriginalPath
	if filepath.Clean(source) == filepath.Clean(dest) {
		s.failItem(ctx, job, item, "destination equals source")
		return
	}
	if pathutil.StrictlyWithin(filepath.Dir(source), dest) {
		s.failItem(ctx, job, item, "destination lies inside the source folder")
		return
	}

	final := dest
	if info, statErr := os.Stat(dest); statErr == nil {
		if info.Size() == item.FileSize {
			s.skipDuplicateAtDestination(ctx, job, item, dest)
			return
		}
		next, err := nextAvailablePath(dest)
		if err != nil {
			s.failItem(ctx, job, item, err.Error())
			return
		}
		final = next
	}

	if err := MoveFile(source, final); err != nil {
		s.failItem(ctx, job, item, err.Error())
		return
	}

	item.Status = store.StatusOrganized
	item.DestinationPath = final
	if err := s.store.UpdateItem(ctx, item); err != nil {
		job.FailedCount++
		s.history.RecordError(ctx, &item.ID, source,
			fmt.Sprintf("moved to %s but failed to update item: %v", final, err))
		s.logger.Error().Err(err).Int64("itemId", item.ID).Msg("Item moved but not persisted")
		return
	}

	s.history.RecordMove(ctx, &item.ID, source, final)
	s.updateRecords(ctx, item)
	job.SuccessCount++

	s.logger.Info().
		Str("source", source).
		Str("dest", final).
		Msg("Organized item")
}

// skipDuplicateAtDestination marks an item whose planned destination is
// already occupied by a same-size file. The file stays put; the run
// counts it as handled.
func (s *Service) skipDuplicateAtDestination(ctx context.Context, job *store.OrganizeJob, item *store.MediaItem, dest string) {
	item.Status = store.StatusSkipped
	if existing, err := s.store.GetItemByDestination(ctx, dest); err == nil && existing != nil && existing.ID != item.ID {
		item.DuplicateOf = &existing.ID
	}
	if err := s.store.UpdateItem(ctx, item); err != nil {
		s.failItem(ctx, job, item, fmt.Sprintf("marking skipped: %v", err))
		return
	}

	s.history.RecordSkip(ctx, &item.ID, item.OriginalPath, dest, "same-size file already at destination")
	job.SuccessCount++

	s.logger.Info().
		Str("source", item.OriginalPath).
		Str("dest", dest).
		Msg("Skipped item, destination already holds an identical-size file")
}

func (s *Service) failItem(ctx context.Context, job *store.OrganizeJob, item *store.MediaItem, msg string) {
	item.Status = store.StatusError
	if err := s.store.UpdateItem(ctx, item); err != nil {
		s.logger.Error().Err(err).Int64("itemId", item.ID).Msg("Failed to mark item errored")
	}
	s.history.RecordError(ctx, &item.ID, item.OriginalPath, msg)
	job.FailedCount++

	s.logger.Warn().
		Str("file", item.OriginalFilename).
		Str("reason", msg).
		Msg("Organize item failed")
}

// updateRecords reflects a successful move into the catalog-backed
// library records. Record trouble never fails the move it follows.
func (s *Service) updateRecords(ctx context.Context, item *store.MediaItem) {
	if item.TMDBID == nil {
		return
	}
	name := item.TMDBName
	if name == "" {
		name = item.CleanedName
	}

	switch item.DetectedType {
	case store.TypeMovie:
		if _, err := s.store.UpsertMovieRecord(ctx, *item.TMDBID, name, item.Year, item.PosterPath); err != nil {
			s.logger.Warn().Err(err).Int64("tmdbId", *item.TMDBID).Msg("Failed to upsert movie record")
		}

	case store.TypeTV:
		if _, err := s.store.UpsertTVSeriesRecord(ctx, *item.TMDBID, name, item.PosterPath); err != nil {
			s.logger.Warn().Err(err).Int64("tmdbId", *item.TMDBID).Msg("Failed to upsert series record")
			return
		}
		episodes := 1
		if item.Episode != nil && item.EpisodeEnd != nil && *item.EpisodeEnd > *item.Episode {
			episodes = *item.EpisodeEnd - *item.Episode + 1
		}
		if err := s.store.IncrementEpisodeCount(ctx, *item.TMDBID, episodes); err != nil {
			s.logger.Warn().Err(err).Int64("tmdbId", *item.TMDBID).Msg("Failed to bump episode count")
		}
	}
}

// Undo moves an organized item's file back to where scanning found it
// and returns the item to the pending pool.
func (s *Service) Undo(ctx context.Context, id int64) (*store.MediaItem, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if item.Status != store.StatusOrganized || item.DestinationPath == "" {
		return nil, ErrNotOrganized
	}
	if _, err := os.Stat(item.DestinationPath); err != nil {
		return nil, fmt.Errorf("organized file missing: %w", err)
	}

	destination := item.DestinationPath
	if err := MoveFile(destination, item.OriginalPath); err != nil {
		return nil, err
	}

	item.Status = store.StatusPending
	item.DestinationPath = ""
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.history.RecordMove(ctx, &item.ID, destination, item.OriginalPath)
	s.logger.Info().
		Str("source", destination).
		Str("dest", item.OriginalPath).
		Msg("Undid organization")

	return item, nil
}
