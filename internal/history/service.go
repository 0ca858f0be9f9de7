// Package history keeps the append-only audit trail of organization
// actions and serves it to the API.
package history

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediastow/mediastow/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Service records and lists organization log entries.
type Service struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewService creates a history service.
func NewService(st *store.Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// RecordMove appends a move entry. Recording is best effort: a failed
// append must never fail the move it describes, so errors are only
// logged.
func (s *Service) RecordMove(ctx context.Context, mediaItemID *int64, source, destination string) {
	s.append(ctx, &store.OrganizationLogEntry{
		MediaItemID:     mediaItemID,
		Action:          store.ActionMove,
		SourcePath:      source,
		DestinationPath: destination,
	})
}

// RecordSkip appends a skip entry for an item left in place.
func (s *Service) RecordSkip(ctx context.Context, mediaItemID *int64, source, destination, message string) {
	s.append(ctx, &store.OrganizationLogEntry{
		MediaItemID:     mediaItemID,
		Action:          store.ActionSkip,
		SourcePath:      source,
		DestinationPath: destination,
		Message:         message,
	})
}

// RecordError appends an error entry for a failed organization attempt.
func (s *Service) RecordError(ctx context.Context, mediaItemID *int64, source, message string) {
	s.append(ctx, &store.OrganizationLogEntry{
		MediaItemID: mediaItemID,
		Action:      store.ActionError,
		SourcePath:  source,
		Message:     message,
	})
}

func (s *Service) append(ctx context.Context, entry *store.OrganizationLogEntry) {
	if _, err := s.store.AppendOrganizationLog(ctx, entry); err != nil {
		s.logger.Warn().Err(err).
			Str("action", string(entry.Action)).
			Str("source", entry.SourcePath).
			Msg("Failed to append organization log entry")
	}
}

// ListOptions narrows and paginates List results.
type ListOptions struct {
	Action      string
	MediaItemID *int64
	Page        int
	PageSize    int
}

// ListResponse is one page of the organization log.
type ListResponse struct {
	Entries  []*store.OrganizationLogEntry `json:"entries"`
	Total    int                           `json:"total"`
	Page     int                           `json:"page"`
	PageSize int                           `json:"pageSize"`
}

// List returns log entries newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	entries, total, err := s.store.ListOrganizationLog(ctx, store.LogFilter{
		Action:      store.LogAction(opts.Action),
		MediaItemID: opts.MediaItemID,
		Limit:       pageSize,
		Offset:      (page - 1) * pageSize,
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*store.OrganizationLogEntry{}
	}

	return &ListResponse{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// Prune deletes entries older than the retention window. A retention of
// zero or less disables pruning.
func (s *Service) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.store.PruneOrganizationLog(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info().
			Int64("deleted", deleted).
			Int("retentionDays", retentionDays).
			Msg("Pruned organization log")
	}
	return deleted, nil
}
