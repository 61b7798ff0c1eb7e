// Package ledger persists per-folder pipeline state in SQLite.
//
// Each patient folder gets one row keyed by its absolute path. The batch
// runner moves rows through pending, assembling, assembled, uploading and
// uploaded; failures land in failed (retried on the next pass) or review
// (left alone until the folder changes or an operator retries it). The
// database runs in WAL mode and every write retries on SQLITE_BUSY so a
// status command can read while a batch is writing.
package ledger
