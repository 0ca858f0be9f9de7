package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// LogAction classifies an organization log entry.
type LogAction string

// Log actions.
const (
	ActionMove  LogAction = "move"
	ActionSkip  LogAction = "skip"
	ActionError LogAction = "error"
)

// OrganizationLogEntry is one append-only audit record of a move attempt.
// MediaItemID is nil when the item no longer exists or never did.
type OrganizationLogEntry struct {
	ID              int64     `json:"id"`
	MediaItemID     *int64    `json:"mediaItemId,omitempty"`
	Action          LogAction `json:"action"`
	SourcePath      string    `json:"sourcePath,omitempty"`
	DestinationPath string    `json:"destinationPath,omitempty"`
	Message         string    `json:"message,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// LogFilter narrows ListOrganizationLog results.
type LogFilter struct {
	Action      LogAction
	MediaItemID *int64
	Limit       int
	Offset      int
}

const orgLogColumns = "id, media_item_id, action, source_path, destination_path, message, created_at"

func scanOrgLogEntry(scanner interface{ Scan(dest ...any) error }) (*OrganizationLogEntry, error) {
	var (
		entry       OrganizationLogEntry
		mediaItemID sql.NullInt64
		actionStr   string
		source      sql.NullString
		destination sql.NullString
		message     sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(&entry.ID, &mediaItemID, &actionStr, &source, &destination, &message, &createdRaw); err != nil {
		return nil, err
	}
	if mediaItemID.Valid {
		entry.MediaItemID = &mediaItemID.Int64
	}
	entry.Action = LogAction(actionStr)
	entry.SourcePath = source.String
	entry.DestinationPath = destination.String
	entry.Message = message.String
	if t, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = t
	}
	return &entry, nil
}

// AppendOrganizationLog writes one audit entry and returns it with its id.
func (s *Store) AppendOrganizationLog(ctx context.Context, entry *OrganizationLogEntry) (*OrganizationLogEntry, error) {
	now := time.Now().UTC()
	query := `INSERT INTO organization_log (media_item_id, action, source_path, destination_path, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	res, err := s.execWithRetry(ctx, query,
		nullableInt64(entry.MediaItemID),
		string(entry.Action),
		nullableString(entry.SourcePath),
		nullableString(entry.DestinationPath),
		nullableString(entry.Message),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("appending organization log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading organization log id: %w", err)
	}

	stored := *entry
	stored.ID = id
	stored.CreatedAt = now
	return &stored, nil
}

// ListOrganizationLog returns entries newest first, plus the total count
// matching the filter before pagination.
func (s *Store) ListOrganizationLog(ctx context.Context, filter LogFilter) ([]*OrganizationLogEntry, int, error) {
	ctx = ensureContext(ctx)

	var (
		conditions []string
		args       []any
	)
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.MediaItemID != nil {
		conditions = append(conditions, "media_item_id = ?")
		args = append(args, *filter.MediaItemID)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM organization_log" + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting organization log: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM organization_log%s ORDER BY created_at DESC, id DESC", orgLogColumns, where)
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
		return nil, 0, fmt.Errorf("listing organization log: %w", err)
	}
	defer rows.Close()

	var entries []*OrganizationLogEntry
	for rows.Next() {
		entry, err := scanOrgLogEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning organization log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

// PruneOrganizationLog deletes entries created before the cutoff and
// returns how many were removed.
func (s *Store) PruneOrganizationLog(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM organization_log WHERE created_at < ?", before.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("pruning organization log: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading pruned row count: %w", err)
	}
	return deleted, nil
}
