package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"patientboard/internal/ledger"
	"patientboard/internal/testsupport"
)

func TestUpsertCreatesPendingEntry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	entry := testsupport.MustUpsert(t, store, "/photos/1234-Maria", 1234)
	if entry == nil {
		t.Fatal("expected entry")
	}
	if entry.Status != ledger.StatusPending {
		t.Fatalf("expected pending, got %s", entry.Status)
	}
	if entry.PatientID != 1234 {
		t.Fatalf("unexpected patient id %d", entry.PatientID)
	}
	if entry.FolderModTime.IsZero() || entry.CreatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %#v", entry)
	}

	missing, err := store.Get(context.Background(), "/photos/absent")
	if err != nil || missing != nil {
		t.Fatalf("expected nil entry for unknown folder, got %#v %v", missing, err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()
	path := "/photos/55"
	testsupport.MustUpsert(t, store, path, 55)

	if err := store.MarkAssembling(ctx, path, "run-1"); err != nil {
		t.Fatalf("MarkAssembling: %v", err)
	}
	if err := store.MarkAssembled(ctx, path, "/photos/55/55_Ana.jpg", 900); err != nil {
		t.Fatalf("MarkAssembled: %v", err)
	}
	if err := store.MarkUploading(ctx, path, "run-2"); err != nil {
		t.Fatalf("MarkUploading: %v", err)
	}
	if err := store.MarkUploaded(ctx, path, "/photos/55/55_Ana.jpg", 0); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	entry, err := store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != ledger.StatusUploaded {
		t.Fatalf("expected uploaded, got %s", entry.Status)
	}
	if entry.RecordID != 900 {
		t.Fatalf("expected record id kept, got %d", entry.RecordID)
	}
	if entry.Attempts != 2 || entry.RunID != "run-2" {
		t.Fatalf("unexpected attempts/run: %d %q", entry.Attempts, entry.RunID)
	}
	if entry.UploadedAt == nil {
		t.Fatal("expected uploaded_at")
	}

	uploaded, err := store.UploadedTemplates(ctx)
	if err != nil {
		t.Fatalf("UploadedTemplates: %v", err)
	}
	if uploaded[path] != "/photos/55/55_Ana.jpg" {
		t.Fatalf("unexpected uploaded map: %v", uploaded)
	}
}

func TestTransitionUnknownFolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	err := store.MarkAssembling(context.Background(), "/nowhere", "run")
	if !errors.Is(err, ledger.ErrUnknownFolder) {
		t.Fatalf("expected ErrUnknownFolder, got %v", err)
	}
}

func TestReviewReturnsToPendingWhenFolderChanges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()
	path := "/photos/abc"
	first := time.Unix(1_700_000_000, 0)

	if _, err := store.Upsert(ctx, path, 0, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.MarkFailed(ctx, path, ledger.StatusReview, "invalid id"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	same, err := store.Upsert(ctx, path, 0, first)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if same.Status != ledger.StatusReview || same.ErrorMessage != "invalid id" {
		t.Fatalf("expected review to stick for unchanged folder, got %s %q", same.Status, same.ErrorMessage)
	}

	changed, err := store.Upsert(ctx, path, 12, first.Add(time.Minute))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if changed.Status != ledger.StatusPending || changed.ErrorMessage != "" {
		t.Fatalf("expected pending after change, got %s %q", changed.Status, changed.ErrorMessage)
	}
	if changed.PatientID != 12 {
		t.Fatalf("expected patient id updated, got %d", changed.PatientID)
	}
}

func TestMarkFailedCoercesStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()
	testsupport.MustUpsert(t, store, "/p/1", 1)

	if err := store.MarkFailed(ctx, "/p/1", ledger.StatusUploaded, "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	entry, _ := store.Get(ctx, "/p/1")
	if entry.Status != ledger.StatusFailed {
		t.Fatalf("expected failed, got %s", entry.Status)
	}
}

func TestResetStuck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, "/p/1", 1)
	testsupport.MustUpsert(t, store, "/p/2", 2)
	testsupport.MustUpsert(t, store, "/p/3", 3)
	if err := store.MarkAssembling(ctx, "/p/1", "r"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkUploading(ctx, "/p/2", "r"); err != nil {
		t.Fatal(err)
	}

	n, err := store.ResetStuck(ctx)
	if err != nil {
		t.Fatalf("ResetStuck: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows reset, got %d", n)
	}
	want := map[string]ledger.Status{
		"/p/1": ledger.StatusPending,
		"/p/2": ledger.StatusAssembled,
		"/p/3": ledger.StatusPending,
	}
	for path, status := range want {
		entry, err := store.Get(ctx, path)
		if err != nil {
			t.Fatalf("Get %s: %v", path, err)
		}
		if entry.Status != status {
			t.Fatalf("%s: expected %s, got %s", path, status, entry.Status)
		}
	}
}

func TestRetryFailedResumesAtTemplate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, "/p/1", 1)
	testsupport.MustUpsert(t, store, "/p/2", 2)
	testsupport.MustUpsert(t, store, "/p/3", 3)
	if err := store.MarkFailed(ctx, "/p/1", ledger.StatusFailed, "decode"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkAssembled(ctx, "/p/2", "/p/2/2_X.jpg", 7); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed(ctx, "/p/2", ledger.StatusReview, "not found"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed(ctx, "/p/3", ledger.StatusFailed, "x"); err != nil {
		t.Fatal(err)
	}

	n, err := store.RetryFailed(ctx, "/p/1", "/p/2")
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 retried, got %d", n)
	}
	first, _ := store.Get(ctx, "/p/1")
	second, _ := store.Get(ctx, "/p/2")
	third, _ := store.Get(ctx, "/p/3")
	if first.Status != ledger.StatusPending || first.ErrorMessage != "" {
		t.Fatalf("unexpected first: %s %q", first.Status, first.ErrorMessage)
	}
	if second.Status != ledger.StatusAssembled {
		t.Fatalf("expected assembled, got %s", second.Status)
	}
	if third.Status != ledger.StatusFailed {
		t.Fatalf("expected untouched failed, got %s", third.Status)
	}

	if n, err := store.RetryFailed(ctx); err != nil || n != 1 {
		t.Fatalf("expected retry-all to move 1 row, got %d %v", n, err)
	}
}

func TestListSummaryAndClear(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.MustUpsert(t, store, "/p/3", 3)
	testsupport.MustUpsert(t, store, "/p/1", 1)
	testsupport.MustUpsert(t, store, "/p/2", 2)
	if err := store.MarkFailed(ctx, "/p/2", ledger.StatusReview, "missing photos"); err != nil {
		t.Fatal(err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].PatientID != 1 || all[2].PatientID != 3 {
		t.Fatalf("expected entries ordered by patient, got %d", len(all))
	}
	review, err := store.List(ctx, ledger.StatusReview)
	if err != nil || len(review) != 1 || review[0].FolderPath != "/p/2" {
		t.Fatalf("unexpected review list: %v %v", review, err)
	}

	summary, err := store.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Total != 3 || summary.Pending != 2 || summary.Review != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if n, err := store.Clear(ctx, ledger.StatusReview); err != nil || n != 1 {
		t.Fatalf("expected 1 cleared, got %d %v", n, err)
	}
	if n, err := store.Clear(ctx); err != nil || n != 2 {
		t.Fatalf("expected 2 cleared, got %d %v", n, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	store.Close()

	db, err := sql.Open("sqlite", cfg.LedgerPath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := ledger.OpenPath(filepath.Clean(cfg.LedgerPath())); !errors.Is(err, ledger.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ledger.ParseStatus(" Review "); !ok || status != ledger.StatusReview {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := ledger.ParseStatus("completed"); ok {
		t.Fatal("expected unknown status to fail")
	}
}
