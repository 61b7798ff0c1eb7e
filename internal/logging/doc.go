// Package logging assembles structured slog loggers and formatting helpers used
// across patientboard.
//
// It owns the console and JSON handlers, fans records out to the terminal, the
// per-run JSON log, and the plain-text error journal, and exposes
// context-aware helpers so pipeline code can tag log lines with patient IDs,
// stages, and run IDs. A no-op logger is provided for tests.
package logging
