package ledger

import (
	"database/sql"
	"errors"
	"time"
)

const entryColumns = "id, folder_path, patient_id, status, template_path, record_id, error_message, run_id, attempts, folder_mtime, created_at, updated_at, uploaded_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry       Entry
		patientID   sql.NullInt64
		statusStr   string
		template    sql.NullString
		recordID    sql.NullInt64
		errorMsg    sql.NullString
		runID       sql.NullString
		mtimeRaw    sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
		uploadedRaw sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.FolderPath,
		&patientID,
		&statusStr,
		&template,
		&recordID,
		&errorMsg,
		&runID,
		&entry.Attempts,
		&mtimeRaw,
		&createdRaw,
		&updatedRaw,
		&uploadedRaw,
	); err != nil {
		return nil, err
	}
	entry.PatientID = patientID.Int64
	entry.Status = Status(statusStr)
	entry.TemplatePath = template.String
	entry.RecordID = recordID.Int64
	entry.ErrorMessage = errorMsg.String
	entry.RunID = runID.String

	if t, err := parseTimeString(mtimeRaw.String); err == nil {
		entry.FolderModTime = t
	}
	if t, err := parseTimeString(createdRaw.String); err == nil {
		entry.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = t
	}
	if uploadedRaw.Valid {
		if t, err := parseTimeString(uploadedRaw.String); err == nil {
			entry.UploadedAt = &t
		}
	}
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
