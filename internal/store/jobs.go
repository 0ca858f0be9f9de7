package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a background job.
type JobStatus string

// Job statuses. Completed and failed are terminal.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ScanJob tracks one run of the scan engine.
type ScanJob struct {
	ID             int64      `json:"id"`
	Status         JobStatus  `json:"status"`
	TotalFiles     int        `json:"totalFiles"`
	ProcessedFiles int        `json:"processedFiles"`
	NewItems       int        `json:"newItems"`
	ErrorsCount    int        `json:"errorsCount"`
	CurrentFolder  string     `json:"currentFolder,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// OrganizeJob tracks one run of the organization executor.
type OrganizeJob struct {
	ID             int64      `json:"id"`
	Status         JobStatus  `json:"status"`
	TotalFiles     int        `json:"totalFiles"`
	ProcessedFiles int        `json:"processedFiles"`
	SuccessCount   int        `json:"successCount"`
	FailedCount    int        `json:"failedCount"`
	CurrentFile    string     `json:"currentFile,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

const scanJobColumns = "id, status, total_files, processed_files, new_items, errors_count, current_folder, error, started_at, completed_at"

func scanScanJob(scanner interface{ Scan(dest ...any) error }) (*ScanJob, error) {
	var (
		job          ScanJob
		statusStr    string
		folder       sql.NullString
		errMsg       sql.NullString
		startedRaw   string
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID, &statusStr, &job.TotalFiles, &job.ProcessedFiles,
		&job.NewItems, &job.ErrorsCount, &folder, &errMsg,
		&startedRaw, &completedRaw,
	); err != nil {
		return nil, err
	}
	job.Status = JobStatus(statusStr)
	job.CurrentFolder = folder.String
	job.Error = errMsg.String
	if started, err := parseTimeString(startedRaw); err == nil {
		job.StartedAt = started
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return &job, nil
}

// CreateScanJob inserts a new pending scan job.
func (s *Store) CreateScanJob(ctx context.Context) (*ScanJob, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO scan_jobs (status, started_at) VALUES (?, ?)`,
		string(JobPending), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert scan job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetScanJob(ctx, id)
}

// UpdateScanJob persists all mutable fields of a scan job.
func (s *Store) UpdateScanJob(ctx context.Context, job *ScanJob) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE scan_jobs
         SET status = ?, total_files = ?, processed_files = ?, new_items = ?,
             errors_count = ?, current_folder = ?, error = ?, completed_at = ?
         WHERE id = ?`,
		string(job.Status),
		job.TotalFiles,
		job.ProcessedFiles,
		job.NewItems,
		job.ErrorsCount,
		nullableString(job.CurrentFolder),
		nullableString(job.Error),
		nullableTime(job.CompletedAt),
		job.ID,
	); err != nil {
		return fmt.Errorf("update scan job: %w", err)
	}
	return nil
}

// GetScanJob fetches a scan job by identifier. Returns nil when not found.
func (s *Store) GetScanJob(ctx context.Context, id int64) (*ScanJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanJobColumns+` FROM scan_jobs WHERE id = ?`, id)
	job, err := scanScanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scan job: %w", err)
	}
	return job, nil
}

// LatestScanJob returns the most recently started scan job, or nil.
func (s *Store) LatestScanJob(ctx context.Context) (*ScanJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scanJobColumns+` FROM scan_jobs ORDER BY id DESC LIMIT 1`)
	job, err := scanScanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest scan job: %w", err)
	}
	return job, nil
}

const organizeJobColumns = "id, status, total_files, processed_files, success_count, failed_count, current_file, error, started_at, completed_at"

func scanOrganizeJob(scanner interface{ Scan(dest ...any) error }) (*OrganizeJob, error) {
	var (
		job          OrganizeJob
		statusStr    string
		file         sql.NullString
		errMsg       sql.NullString
		startedRaw   string
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID, &statusStr, &job.TotalFiles, &job.ProcessedFiles,
		&job.SuccessCount, &job.FailedCount, &file, &errMsg,
		&startedRaw, &completedRaw,
	); err != nil {
		return nil, err
	}
	job.Status = JobStatus(statusStr)
	job.CurrentFile = file.String
	job.Error = errMsg.String
	if started, err := parseTimeString(startedRaw); err == nil {
		job.StartedAt = started
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return &job, nil
}

// CreateOrganizeJob inserts a new pending organize job.
func (s *Store) CreateOrganizeJob(ctx context.Context) (*OrganizeJob, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO organize_jobs (status, started_at) VALUES (?, ?)`,
		string(JobPending), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert organize job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetOrganizeJob(ctx, id)
}

// UpdateOrganizeJob persists all mutable fields of an organize job.
func (s *Store) UpdateOrganizeJob(ctx context.Context, job *OrganizeJob) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE organize_jobs
         SET status = ?, total_files = ?, processed_files = ?, success_count = ?,
             failed_count = ?, current_file = ?, error = ?, completed_at = ?
         WHERE id = ?`,
		string(job.Status),
		job.TotalFiles,
		job.ProcessedFiles,
		job.SuccessCount,
		job.FailedCount,
		nullableString(job.CurrentFile),
		nullableString(job.Error),
		nullableTime(job.CompletedAt),
		job.ID,
	); err != nil {
		return fmt.Errorf("update organize job: %w", err)
	}
	return nil
}

// GetOrganizeJob fetches an organize job by identifier. Returns nil when not found.
func (s *Store) GetOrganizeJob(ctx context.Context, id int64) (*OrganizeJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+organizeJobColumns+` FROM organize_jobs WHERE id = ?`, id)
	job, err := scanOrganizeJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organize job: %w", err)
	}
	return job, nil
}

// LatestOrganizeJob returns the most recently started organize job, or nil.
func (s *Store) LatestOrganizeJob(ctx context.Context) (*OrganizeJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+organizeJobColumns+` FROM organize_jobs ORDER BY id DESC LIMIT 1`)
	job, err := scanOrganizeJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest organize job: %w", err)
	}
	return job, nil
}
