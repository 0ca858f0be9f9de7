// Package items serves the media item inventory: listing and filtering,
// manual corrections, rescan requests, deletion, and library stats.
package items

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/store"
)

// Service errors.
var (
	ErrItemNotFound = errors.New("item not found")
	ErrInvalidType  = errors.New("invalid media type")
)

// Service exposes read and edit operations over the media item set.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewService creates an items service.
func NewService(st *store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger.With().Str("component", "items").Logger(),
	}
}

// List returns items matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter store.ItemFilter) ([]*store.MediaItem, error) {
	items, err := s.store.ListItems(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*store.MediaItem{}
	}
	return items, nil
}

// Get returns one item by id.
func (s *Service) Get(ctx context.Context, id int64) (*store.MediaItem, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// UpdateRequest carries a manual correction. Nil fields stay unchanged.
type UpdateRequest struct {
	DetectedType *string `json:"detectedType,omitempty"`
	CleanedName  *string `json:"cleanedName,omitempty"`
	Year         *int    `json:"year,omitempty"`
	Season       *int    `json:"season,omitempty"`
	Episode      *int    `json:"episode,omitempty"`
	EpisodeEnd   *int    `json:"episodeEnd,omitempty"`
	EpisodeTitle *string `json:"episodeTitle,omitempty"`
}

// Update applies a manual correction to an item. Edited items are marked
// manualOverride so later scans leave the corrected fields alone, and
// their confidence is pinned to 100.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*store.MediaItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DetectedType != nil {
		mediaType := store.MediaType(*req.DetectedType)
		switch mediaType {
		case store.TypeMovie, store.TypeTV, store.TypeUnknown:
			item.DetectedType = mediaType
		default:
			return nil, ErrInvalidType
		}
	}
	if req.CleanedName != nil {
		item.CleanedName = *req.CleanedName
	}
	if req.Year != nil {
		item.Year = req.Year
	}
	if req.Season != nil {
		item.Season = req.Season
	}
	if req.Episode != nil {
		item.Episode = req.Episode
	}
	if req.EpisodeEnd != nil {
		item.EpisodeEnd = req.EpisodeEnd
	}
	if req.EpisodeTitle != nil {
		item.EpisodeTitle = *req.EpisodeTitle
	}

	item.ManualOverride = true
	item.Confidence = 100

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("itemId", id).Msg("Item manually corrected")
	return item, nil
}

// RequestRescan clears catalog enrichment and duplicate grouping and
// returns the item to pending, so the next scan reclassifies it.
func (s *Service) RequestRescan(ctx context.Context, id int64) (*store.MediaItem, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.ResetItemForRescan(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes an item row. The file itself is left alone.
func (s *Service) Delete(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteItem(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrItemNotFound
	}
	s.logger.Info().Int64("itemId", id).Msg("Item deleted")
	return nil
}

// Stats returns library-wide counters.
func (s *Service) Stats(ctx context.Context) (*store.Stats, error) {
	return s.store.ItemStats(ctx)
}
