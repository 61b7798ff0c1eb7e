package ledger

import (
	"context"
	"fmt"
	"time"
)

func (s *Store) transition(ctx context.Context, op, folderPath, set string, args ...any) error {
	full := append(append([]any(nil), args...), formatTime(time.Now()), folderPath)
	res, err := s.execWithRetry(ctx,
		`UPDATE folders SET `+set+`, updated_at = ? WHERE folder_path = ?`, full...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w: %s", op, ErrUnknownFolder, folderPath)
	}
	return nil
}

// MarkAssembling records the start of a template build.
func (s *Store) MarkAssembling(ctx context.Context, folderPath, runID string) error {
	return s.transition(ctx, "mark assembling", folderPath,
		`status = ?, run_id = ?, attempts = attempts + 1, error_message = NULL`,
		StatusAssembling, nullableString(runID))
}

// MarkAssembled records a written template and the API record it was built from.
func (s *Store) MarkAssembled(ctx context.Context, folderPath, templatePath string, recordID int64) error {
	return s.transition(ctx, "mark assembled", folderPath,
		`status = ?, template_path = ?, record_id = COALESCE(?, record_id), error_message = NULL`,
		StatusAssembled, nullableString(templatePath), nullableInt(recordID))
}

// MarkUploading records the start of an upload.
func (s *Store) MarkUploading(ctx context.Context, folderPath, runID string) error {
	return s.transition(ctx, "mark uploading", folderPath,
		`status = ?, run_id = ?, attempts = attempts + 1, error_message = NULL`,
		StatusUploading, nullableString(runID))
}

// MarkUploaded records a successful upload of templatePath.
func (s *Store) MarkUploaded(ctx context.Context, folderPath, templatePath string, recordID int64) error {
	return s.transition(ctx, "mark uploaded", folderPath,
		`status = ?, template_path = ?, record_id = COALESCE(?, record_id), error_message = NULL, uploaded_at = ?`,
		StatusUploaded, nullableString(templatePath), nullableInt(recordID), formatTime(time.Now()))
}

// MarkFailed records a failure. Only StatusFailed and StatusReview are
// accepted; anything else is stored as failed.
func (s *Store) MarkFailed(ctx context.Context, folderPath string, status Status, message string) error {
	if status != StatusReview {
		status = StatusFailed
	}
	return s.transition(ctx, "mark failed", folderPath,
		`status = ?, error_message = ?`, status, nullableString(message))
}

// ResetStuck returns interrupted work to the last stable status:
// assembling goes back to pending and uploading back to assembled.
func (s *Store) ResetStuck(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE folders
        SET status = CASE status WHEN ? THEN ? WHEN ? THEN ? ELSE status END,
            updated_at = ?
        WHERE status IN (?, ?)`,
		StatusAssembling, StatusPending,
		StatusUploading, StatusAssembled,
		formatTime(time.Now()),
		StatusAssembling, StatusUploading,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck folders: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed and review folders back into the pipeline. Folders
// that already produced a template resume at assembled. With no paths every
// failed or review folder is retried.
func (s *Store) RetryFailed(ctx context.Context, folderPaths ...string) (int64, error) {
	query := `UPDATE folders
        SET status = CASE WHEN template_path IS NOT NULL THEN ? ELSE ? END,
            error_message = NULL, updated_at = ?
        WHERE status IN (?, ?)`
	args := []any{StatusAssembled, StatusPending, formatTime(time.Now()), StatusFailed, StatusReview}
	if len(folderPaths) > 0 {
		query += ` AND folder_path IN (` + makePlaceholders(len(folderPaths)) + `)`
		for _, path := range folderPaths {
			args = append(args, path)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed folders: %w", err)
	}
	return res.RowsAffected()
}

// Clear deletes entries with the given statuses, or every entry when none
// are given.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	query := `DELETE FROM folders`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear folders: %w", err)
	}
	return res.RowsAffected()
}

// Summary counts entries by status.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM folders GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("ledger summary: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		switch {
		case status == StatusPending:
			summary.Pending += count
		case status.InFlight():
			summary.InFlight += count
		case status == StatusAssembled:
			summary.Assembled += count
		case status == StatusUploaded:
			summary.Uploaded += count
		case status == StatusFailed:
			summary.Failed += count
		case status == StatusReview:
			summary.Review += count
		}
	}
	return summary, rows.Err()
}
