package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Upsert records a scanned folder. New folders start pending. A folder held
// in review returns to pending once its modification time changes, so
// staff fixing a folder (renaming, adding photos) is enough to retry it.
func (s *Store) Upsert(ctx context.Context, folderPath string, patientID int64, modTime time.Time) (*Entry, error) {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO folders (folder_path, patient_id, status, folder_mtime, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(folder_path) DO UPDATE SET
            patient_id = excluded.patient_id,
            status = CASE
                WHEN folders.status = ? AND COALESCE(folders.folder_mtime, '') <> COALESCE(excluded.folder_mtime, '')
                THEN ? ELSE folders.status END,
            error_message = CASE
                WHEN folders.status = ? AND COALESCE(folders.folder_mtime, '') <> COALESCE(excluded.folder_mtime, '')
                THEN NULL ELSE folders.error_message END,
            folder_mtime = excluded.folder_mtime,
            updated_at = excluded.updated_at`,
		folderPath,
		nullableInt(patientID),
		StatusPending,
		nullableTime(modTime),
		now,
		now,
		StatusReview, StatusPending,
		StatusReview,
	); err != nil {
		return nil, fmt.Errorf("upsert folder: %w", err)
	}
	return s.Get(ctx, folderPath)
}

// Get returns the entry for a folder, or nil when the folder is unknown.
func (s *Store) Get(ctx context.Context, folderPath string) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+entryColumns+` FROM folders WHERE folder_path = ?`, folderPath)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return entry, nil
}

// List returns entries filtered by status, ordered by patient then path. No
// statuses means every entry.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM folders`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY patient_id, folder_path`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UploadedTemplates maps folder paths to the template file last uploaded
// from them.
func (s *Store) UploadedTemplates(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT folder_path, template_path FROM folders WHERE status = ?`, StatusUploaded)
	if err != nil {
		return nil, fmt.Errorf("list uploaded: %w", err)
	}
	defer rows.Close()

	uploaded := make(map[string]string)
	for rows.Next() {
		var (
			path     string
			template sql.NullString
		)
		if err := rows.Scan(&path, &template); err != nil {
			return nil, err
		}
		uploaded[path] = template.String
	}
	return uploaded, rows.Err()
}
