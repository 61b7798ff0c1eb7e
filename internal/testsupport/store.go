package testsupport

import (
	"context"
	"testing"
	"time"

	"patientboard/internal/config"
	"patientboard/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustUpsert records a folder in the ledger for tests.
func MustUpsert(t testing.TB, store *ledger.Store, path string, patientID int64) *ledger.Entry {
	t.Helper()

	entry, err := store.Upsert(context.Background(), path, patientID, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("store.Upsert: %v", err)
	}
	return entry
}
