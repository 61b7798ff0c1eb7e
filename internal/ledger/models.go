package ledger

import (
	"strings"
	"time"
)

// Status represents where a patient folder sits in the pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssembling Status = "assembling"
	StatusAssembled  Status = "assembled"
	StatusUploading  Status = "uploading"
	StatusUploaded   Status = "uploaded"
	StatusFailed     Status = "failed"
	// StatusReview marks folders that need a person: bad names, missing
	// photos, unknown patients.
	StatusReview Status = "review"
)

var allStatuses = []Status{
	StatusPending,
	StatusAssembling,
	StatusAssembled,
	StatusUploading,
	StatusUploaded,
	StatusFailed,
	StatusReview,
}

// AllStatuses returns every known status in pipeline order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// InFlight reports whether the status marks work that was interrupted if
// no batch currently holds the lock.
func (s Status) InFlight() bool {
	return s == StatusAssembling || s == StatusUploading
}

// Entry is one ledger row.
type Entry struct {
	ID            int64
	FolderPath    string
	PatientID     int64
	Status        Status
	TemplatePath  string
	RecordID      int64
	ErrorMessage  string
	RunID         string
	Attempts      int
	FolderModTime time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	UploadedAt    *time.Time
}

// Summary aggregates ledger rows by status.
type Summary struct {
	Total     int
	Pending   int
	InFlight  int
	Assembled int
	Uploaded  int
	Failed    int
	Review    int
}
