// Package batch drives patient folders through assembly and upload.
//
// A Runner scans the photo root, records every folder in the ledger and
// acts on the folders that need work, one patient at a time. Failures are
// logged at ERROR (which mirrors them into the error journal), stored on the
// folder's ledger row and counted; they never stop the batch. Folders held
// in review are skipped until they change on disk or are retried by hand.
//
// Only one batch may run against a state directory at a time. The Runner
// takes an exclusive file lock for the duration of each public call; Watch
// holds it across every pass.
package batch
