// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp patient IDs, stage names, and batch run
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent ledger statuses (failed vs review).
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
