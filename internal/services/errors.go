package services

import (
	"errors"
	"fmt"
	"strings"

	"patientboard/internal/ledger"
)

// Markers classify stage failures. Every error a stage returns should carry
// exactly one of them, attached with Wrap.
var (
	// ErrExternalTool covers rembg, file writes and undecodable API replies.
	ErrExternalTool = errors.New("external tool error")
	// ErrValidation covers folder contents and records a person must fix.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration covers settings, credentials and the photo root.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound means the patient API has no record for the patient.
	ErrNotFound = errors.New("not found")
	// ErrTransient covers network trouble and server-side API errors.
	ErrTransient = errors.New("transient failure")
)

// Wrap tags err with marker and prefixes it with "stage: operation: message",
// skipping blank parts. A nil marker is treated as ErrTransient so an
// unclassified failure is retried rather than parked.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := joinNonBlank(stage, operation, message)
	if detail == "" {
		detail = "service failure"
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// FailureStatus maps a stage error to the ledger status the batch runner
// should persist. Problems that only a person can fix (bad folder names,
// missing photos, unknown patients, bad settings) land in review; everything
// else is failed and retried on the next pass.
func FailureStatus(err error) ledger.Status {
	for _, marker := range []error{ErrValidation, ErrConfiguration, ErrNotFound} {
		if errors.Is(err, marker) {
			return ledger.StatusReview
		}
	}
	return ledger.StatusFailed
}

func joinNonBlank(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ": ")
}
