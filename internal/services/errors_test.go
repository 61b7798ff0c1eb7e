package services_test

import (
	"errors"
	"strings"
	"testing"

	"patientboard/internal/ledger"
	"patientboard/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "bgremove", "rembg", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"bgremove", "rembg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureStatusMapping(t *testing.T) {
	validationErr := services.Wrap(services.ErrValidation, "assemble", "slots", "missing photo 4", nil)
	if status := services.FailureStatus(validationErr); status != ledger.StatusReview {
		t.Fatalf("expected review for validation error, got %s", status)
	}

	notFound := services.Wrap(services.ErrNotFound, "assemble", "lookup", "patient 12", nil)
	if status := services.FailureStatus(notFound); status != ledger.StatusReview {
		t.Fatalf("expected review for not found error, got %s", status)
	}

	transientErr := services.Wrap(services.ErrTransient, "upload", "put", "503", errors.New("io"))
	if status := services.FailureStatus(transientErr); status != ledger.StatusFailed {
		t.Fatalf("expected failed for transient error, got %s", status)
	}

	if status := services.FailureStatus(nil); status != ledger.StatusFailed {
		t.Fatalf("expected failed for nil error, got %s", status)
	}
}

func TestWrapSkipsBlankParts(t *testing.T) {
	err := services.Wrap(services.ErrConfiguration, "scan", " ", "photo root missing", nil)
	if got := err.Error(); got != "configuration error: scan: photo root missing" {
		t.Fatalf("unexpected message %q", got)
	}
	if status := services.FailureStatus(err); status != ledger.StatusReview {
		t.Fatalf("expected review for configuration error, got %s", status)
	}
}
