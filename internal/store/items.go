package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MediaType classifies a media item.
type MediaType string

// Media types.
const (
	TypeMovie   MediaType = "movie"
	TypeTV      MediaType = "tv_show"
	TypeUnknown MediaType = "unknown"
)

// ItemStatus is the lifecycle state of a media item.
type ItemStatus string

// Item statuses.
const (
	StatusPending   ItemStatus = "pending"
	StatusOrganized ItemStatus = "organized"
	StatusSkipped   ItemStatus = "skipped"
	StatusError     ItemStatus = "error"
)

// MediaItem is one observed media file and everything derived from it.
type MediaItem struct {
	ID               int64      `json:"id"`
	OriginalPath     string     `json:"originalPath"`
	OriginalFilename string     `json:"originalFilename"`
	FileSize         int64      `json:"fileSize"`
	Extension        string     `json:"extension"`
	DetectedType     MediaType  `json:"detectedType"`
	DetectedName     string     `json:"detectedName,omitempty"`
	CleanedName      string     `json:"cleanedName,omitempty"`
	Year             *int       `json:"year,omitempty"`
	Season           *int       `json:"season,omitempty"`
	Episode          *int       `json:"episode,omitempty"`
	EpisodeEnd       *int       `json:"episodeEnd,omitempty"`
	EpisodeTitle     string     `json:"episodeTitle,omitempty"`
	IsSeasonPack     bool       `json:"isSeasonPack"`
	Confidence       int        `json:"confidence"`
	TMDBID           *int64     `json:"tmdbId,omitempty"`
	TMDBName         string     `json:"tmdbName,omitempty"`
	PosterPath       string     `json:"posterPath,omitempty"`
	Status           ItemStatus `json:"status"`
	DestinationPath  string     `json:"destinationPath,omitempty"`
	DuplicateOf      *int64     `json:"duplicateOf,omitempty"`
	ManualOverride   bool       `json:"manualOverride"`
	DurationSeconds  *float64   `json:"durationSeconds,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Stats summarizes the media library.
type Stats struct {
	Total      int `json:"total"`
	Organized  int `json:"organized"`
	Pending    int `json:"pending"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
	TVShows    int `json:"tvShows"`
	Movies     int `json:"movies"`
}

// ItemFilter narrows ListItems results. Zero values mean "no filter".
type ItemFilter struct {
	Type            MediaType
	Status          ItemStatus
	Search          string
	ConfidenceBelow int
	DuplicatesOnly  bool
	Limit           int
	Offset          int
}

const itemColumns = "id, original_path, original_filename, file_size, extension, detected_type, detected_name, cleaned_name, year, season, episode, episode_end, episode_title, is_season_pack, confidence, tmdb_id, tmdb_name, poster_path, status, destination_path, duplicate_of, manual_override, duration_seconds, created_at, updated_at"

func scanMediaItem(scanner interface{ Scan(dest ...any) error }) (*MediaItem, error) {
	var (
		id           int64
		originalPath string
		originalName string
		fileSize     int64
		extension    string
		detectedType string
		detectedName sql.NullString
		cleanedName  sql.NullString
		year         sql.NullInt64
		season       sql.NullInt64
		episode      sql.NullInt64
		episodeEnd   sql.NullInt64
		episodeTitle sql.NullString
		isSeasonPack sql.NullInt64
		confidence   int
		tmdbID       sql.NullInt64
		tmdbName     sql.NullString
		posterPath   sql.NullString
		statusStr    string
		destination  sql.NullString
		duplicateOf  sql.NullInt64
		manual       sql.NullInt64
		duration     sql.NullFloat64
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&originalPath,
		&originalName,
		&fileSize,
		&extension,
		&detectedType,
		&detectedName,
		&cleanedName,
		&year,
		&season,
		&episode,
		&episodeEnd,
		&episodeTitle,
		&isSeasonPack,
		&confidence,
		&tmdbID,
		&tmdbName,
		&posterPath,
		&statusStr,
		&destination,
		&duplicateOf,
		&manual,
		&duration,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &MediaItem{
		ID:               id,
		OriginalPath:     originalPath,
		OriginalFilename: originalName,
		FileSize:         fileSize,
		Extension:        extension,
		DetectedType:     MediaType(detectedType),
		DetectedName:     detectedName.String,
		CleanedName:      cleanedName.String,
		EpisodeTitle:     episodeTitle.String,
		Confidence:       confidence,
		TMDBName:         tmdbName.String,
		PosterPath:       posterPath.String,
		Status:           ItemStatus(statusStr),
		DestinationPath:  destination.String,
	}
	if year.Valid {
		v := int(year.Int64)
		item.Year = &v
	}
	if season.Valid {
		v := int(season.Int64)
		item.Season = &v
	}
	if episode.Valid {
		v := int(episode.Int64)
		item.Episode = &v
	}
	if episodeEnd.Valid {
		v := int(episodeEnd.Int64)
		item.EpisodeEnd = &v
	}
	if isSeasonPack.Valid {
		item.IsSeasonPack = isSeasonPack.Int64 != 0
	}
	if tmdbID.Valid {
		v := tmdbID.Int64
		item.TMDBID = &v
	}
	if duplicateOf.Valid {
		v := duplicateOf.Int64
		item.DuplicateOf = &v
	}
	if manual.Valid {
		item.ManualOverride = manual.Int64 != 0
	}
	if duration.Valid {
		v := duration.Float64
		item.DurationSeconds = &v
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

// InsertItem persists a newly observed media item and returns the stored row.
func (s *Store) InsertItem(ctx context.Context, item *MediaItem) (*MediaItem, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO media_items (
            original_path, original_filename, file_size, extension,
            detected_type, detected_name, cleaned_name, year, season, episode,
            episode_end, episode_title, is_season_pack, confidence,
            tmdb_id, tmdb_name, poster_path, status, destination_path,
            duplicate_of, manual_override, duration_seconds, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.OriginalPath,
		item.OriginalFilename,
		item.FileSize,
		item.Extension,
		string(item.DetectedType),
		nullableString(item.DetectedName),
		nullableString(item.CleanedName),
		nullableInt(item.Year),
		nullableInt(item.Season),
		nullableInt(item.Episode),
		nullableInt(item.EpisodeEnd),
		nullableString(item.EpisodeTitle),
		boolToInt(item.IsSeasonPack),
		item.Confidence,
		nullableInt64(item.TMDBID),
		nullableString(item.TMDBName),
		nullableString(item.PosterPath),
		string(item.Status),
		nullableString(item.DestinationPath),
		nullableInt64(item.DuplicateOf),
		boolToInt(item.ManualOverride),
		nullableFloat(item.DurationSeconds),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert media item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(ctx, id)
}

// UpdateItem persists all mutable fields of an existing item.
func (s *Store) UpdateItem(ctx context.Context, item *MediaItem) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE media_items
         SET original_path = ?, original_filename = ?, file_size = ?, extension = ?,
             detected_type = ?, detected_name = ?, cleaned_name = ?, year = ?,
             season = ?, episode = ?, episode_end = ?, episode_title = ?,
             is_season_pack = ?, confidence = ?, tmdb_id = ?, tmdb_name = ?,
             poster_path = ?, status = ?, destination_path = ?, duplicate_of = ?,
             manual_override = ?, duration_seconds = ?, updated_at = ?
         WHERE id = ?`,
		item.OriginalPath,
		item.OriginalFilename,
		item.FileSize,
		item.Extension,
		string(item.DetectedType),
		nullableString(item.DetectedName),
		nullableString(item.CleanedName),
		nullableInt(item.Year),
		nullableInt(item.Season),
		nullableInt(item.Episode),
		nullableInt(item.EpisodeEnd),
		nullableString(item.EpisodeTitle),
		boolToInt(item.IsSeasonPack),
		item.Confidence,
		nullableInt64(item.TMDBID),
		nullableString(item.TMDBName),
		nullableString(item.PosterPath),
		string(item.Status),
		nullableString(item.DestinationPath),
		nullableInt64(item.DuplicateOf),
		boolToInt(item.ManualOverride),
		nullableFloat(item.DurationSeconds),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	); err != nil {
		return fmt.Errorf("update media item: %w", err)
	}
	return nil
}

// UpdateItemFileSize updates only the file size. Used for items under
// manual override, where every other field is frozen.
func (s *Store) UpdateItemFileSize(ctx context.Context, id, fileSize int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE media_items SET file_size = ?, updated_at = ? WHERE id = ?`,
		fileSize, now, id,
	); err != nil {
		return fmt.Errorf("update item file size: %w", err)
	}
	return nil
}

// GetItem fetches a media item by identifier. Returns nil when not found.
func (s *Store) GetItem(ctx context.Context, id int64) (*MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM media_items WHERE id = ?`, id)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media item: %w", err)
	}
	return item, nil
}

// GetItemByOriginal fetches the item recorded for a source path and filename.
func (s *Store) GetItemByOriginal(ctx context.Context, originalPath, originalFilename string) (*MediaItem, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM media_items WHERE original_path = ? AND original_filename = ?`,
		originalPath, originalFilename,
	)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by original: %w", err)
	}
	return item, nil
}

// GetItemByDestination fetches the organized item occupying a destination path.
func (s *Store) GetItemByDestination(ctx context.Context, destinationPath string) (*MediaItem, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM media_items WHERE destination_path = ? ORDER BY id LIMIT 1`,
		destinationPath,
	)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item by destination: %w", err)
	}
	return item, nil
}

// ListItems returns items matching the filter, newest first.
func (s *Store) ListItems(ctx context.Context, filter ItemFilter) ([]*MediaItem, error) {
	query := `SELECT ` + itemColumns + ` FROM media_items`
	var (
		clauses []string
		args    []any
	)

	if filter.Type != "" {
		clauses = append(clauses, "detected_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Search != "" {
		clauses = append(clauses, "(cleaned_name LIKE ? OR detected_name LIKE ? OR original_filename LIKE ?)")
		term := "%" + filter.Search + "%"
		args = append(args, term, term, term)
	}
	if filter.ConfidenceBelow > 0 {
		clauses = append(clauses, "confidence < ?")
		args = append(args, filter.ConfidenceBelow)
	}
	if filter.DuplicatesOnly {
		clauses = append(clauses, "duplicate_of IS NOT NULL")
	}

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListPrimaryItems returns all non-duplicate items of a type in insertion
// order. This is the candidate set for duplicate detection.
func (s *Store) ListPrimaryItems(ctx context.Context, mediaType MediaType) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM media_items WHERE duplicate_of IS NULL AND detected_type = ? ORDER BY id`,
		string(mediaType),
	)
	if err != nil {
		return nil, fmt.Errorf("list primary items: %w", err)
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ResetItemForRescan clears catalog enrichment and duplicate grouping so
// the next scan reclassifies the item from scratch.
func (s *Store) ResetItemForRescan(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE media_items
         SET tmdb_id = NULL, tmdb_name = NULL, poster_path = NULL,
             episode_title = NULL, duplicate_of = NULL, status = ?, updated_at = ?
         WHERE id = ?`,
		string(StatusPending), now, id,
	); err != nil {
		return fmt.Errorf("reset item for rescan: %w", err)
	}
	return nil
}

// DeleteItem removes an item by identifier.
func (s *Store) DeleteItem(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete media item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ItemStats returns library-wide counters.
func (s *Store) ItemStats(ctx context.Context) (*Stats, error) {
	var (
		total      int
		organized  sql.NullInt64
		pending    sql.NullInt64
		duplicates sql.NullInt64
		errCount   sql.NullInt64
		tvShows    sql.NullInt64
		movies     sql.NullInt64
	)

	row := s.db.QueryRowContext(ctx, `
        SELECT
            COUNT(*),
            SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN duplicate_of IS NOT NULL THEN 1 ELSE 0 END),
            SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN detected_type = ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN detected_type = ? THEN 1 ELSE 0 END)
        FROM media_items`,
		string(StatusOrganized),
		string(StatusPending),
		string(StatusError),
		string(TypeTV),
		string(TypeMovie),
	)
	if err := row.Scan(&total, &organized, &pending, &duplicates, &errCount, &tvShows, &movies); err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}

	return &Stats{
		Total:      total,
		Organized:  int(organized.Int64),
		Pending:    int(pending.Int64),
		Duplicates: int(duplicates.Int64),
		Errors:     int(errCount.Int64),
		TVShows:    int(tvShows.Int64),
		Movies:     int(movies.Int64),
	}, nil
}
