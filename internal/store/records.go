package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MovieRecord is one catalog-matched movie in the organized library.
type MovieRecord struct {
	ID         int64     `json:"id"`
	TMDBID     int64     `json:"tmdbId"`
	Title      string    `json:"title"`
	Year       *int      `json:"year,omitempty"`
	PosterPath string    `json:"posterPath,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TVSeriesRecord is one catalog-matched series in the organized library.
// EpisodeCount grows as episodes of the series are organized.
type TVSeriesRecord struct {
	ID           int64     `json:"id"`
	TMDBID       int64     `json:"tmdbId"`
	Name         string    `json:"name"`
	PosterPath   string    `json:"posterPath,omitempty"`
	EpisodeCount int       `json:"episodeCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

const movieRecordColumns = "id, tmdb_id, title, year, poster_path, created_at, updated_at"

func scanMovieRecord(scanner interface{ Scan(dest ...any) error }) (*MovieRecord, error) {
	var (
		rec        MovieRecord
		year       sql.NullInt64
		posterPath sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&rec.ID, &rec.TMDBID, &rec.Title, &year, &posterPath, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	if year.Valid {
		value := int(year.Int64)
		rec.Year = &value
	}
	rec.PosterPath = posterPath.String
	if t, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

// UpsertMovieRecord inserts a movie record keyed by its catalog id, or
// refreshes the title, year, and poster when the id already exists.
func (s *Store) UpsertMovieRecord(ctx context.Context, tmdbID int64, title string, year *int, posterPath string) (*MovieRecord, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `INSERT INTO movie_records (tmdb_id, title, year, poster_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tmdb_id) DO UPDATE SET
			title = excluded.title,
			year = excluded.year,
			poster_path = excluded.poster_path,
			updated_at = excluded.updated_at`

	if _, err := s.execWithRetry(ctx, query, tmdbID, title, nullableInt(year), nullableString(posterPath), now, now); err != nil {
		return nil, fmt.Errorf("upserting movie record: %w", err)
	}
	return s.GetMovieRecordByTMDBID(ctx, tmdbID)
}

// GetMovieRecordByTMDBID returns the movie record with the given catalog id,
// or nil when none exists.
func (s *Store) GetMovieRecordByTMDBID(ctx context.Context, tmdbID int64) (*MovieRecord, error) {
	ctx = ensureContext(ctx)
	query := fmt.Sprintf("SELECT %s FROM movie_records WHERE tmdb_id = ?", movieRecordColumns)

	rec, err := scanMovieRecord(s.db.QueryRowContext(ctx, query, tmdbID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting movie record: %w", err)
	}
	return rec, nil
}

// ListMovieRecords returns all movie records ordered by title.
func (s *Store) ListMovieRecords(ctx context.Context) ([]*MovieRecord, error) {
	ctx = ensureContext(ctx)
	query := fmt.Sprintf("SELECT %s FROM movie_records ORDER BY title COLLATE NOCASE", movieRecordColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing movie records: %w", err)
	}
	defer rows.Close()

	var records []*MovieRecord
	for rows.Next() {
		rec, err := scanMovieRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning movie record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

const tvSeriesRecordColumns = "id, tmdb_id, name, poster_path, episode_count, created_at, updated_at"

func scanTVSeriesRecord(scanner interface{ Scan(dest ...any) error }) (*TVSeriesRecord, error) {
	var (
		rec        TVSeriesRecord
		posterPath sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&rec.ID, &rec.TMDBID, &rec.Name, &posterPath, &rec.EpisodeCount, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	rec.PosterPath = posterPath.String
	if t, err := parseTimeString(createdRaw); err == nil {
		rec.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

// UpsertTVSeriesRecord inserts a series record keyed by its catalog id, or
// refreshes the name and poster when the id already exists. The episode
// count is untouched; use IncrementEpisodeCount as episodes land.
func (s *Store) UpsertTVSeriesRecord(ctx context.Context, tmdbID int64, name string, posterPath string) (*TVSeriesRecord, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `INSERT INTO tv_series_records (tmdb_id, name, poster_path, episode_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
		ON CONFLICT(tmdb_id) DO UPDATE SET
			name = excluded.name,
			poster_path = excluded.poster_path,
			updated_at = excluded.updated_at`

	if _, err := s.execWithRetry(ctx, query, tmdbID, name, nullableString(posterPath), now, now); err != nil {
		return nil, fmt.Errorf("upserting tv series record: %w", err)
	}
	return s.GetTVSeriesRecordByTMDBID(ctx, tmdbID)
}

// IncrementEpisodeCount adds the given number of episodes to a series record.
func (s *Store) IncrementEpisodeCount(ctx context.Context, tmdbID int64, episodes int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := "UPDATE tv_series_records SET episode_count = episode_count + ?, updated_at = ? WHERE tmdb_id = ?"
	if err := s.execWithoutResultRetry(ctx, query, episodes, now, tmdbID); err != nil {
		return fmt.Errorf("incrementing episode count: %w", err)
	}
	return nil
}

// GetTVSeriesRecordByTMDBID returns the series record with the given catalog
// id, or nil when none exists.
func (s *Store) GetTVSeriesRecordByTMDBID(ctx context.Context, tmdbID int64) (*TVSeriesRecord, error) {
	ctx = ensureContext(ctx)
	query := fmt.Sprintf("SELECT %s FROM tv_series_records WHERE tmdb_id = ?", tvSeriesRecordColumns)

	rec, err := scanTVSeriesRecord(s.db.QueryRowContext(ctx, query, tmdbID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting tv series record: %w", err)
	}
	return rec, nil
}

// ListTVSeriesRecords returns all series records ordered by name.
func (s *Store) ListTVSeriesRecords(ctx context.Context) ([]*TVSeriesRecord, error) {
	ctx = ensureContext(ctx)
	query := fmt.Sprintf("SELECT %s FROM tv_series_records ORDER BY name COLLATE NOCASE", tvSeriesRecordColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing tv series records: %w", err)
	}
	defer rows.Close()

	var records []*TVSeriesRecord
	for rows.Next() {
		rec, err := scanTVSeriesRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tv series record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
