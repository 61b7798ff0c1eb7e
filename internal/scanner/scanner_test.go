package scanner_test

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"patientboard/internal/patientid"
	"patientboard/internal/scanner"
	"patientboard/internal/services"
	"patientboard/internal/testsupport"
)

type fakeIndex map[string]string

func (f fakeIndex) UploadedTemplates(context.Context) (map[string]string, error) {
	return f, nil
}

func TestScanClassifiesFolders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	root := cfg.Paths.PhotoRoot

	ready := testsupport.PatientFolder(t, root, "100-Ana Souza")
	partial := testsupport.PatientFolder(t, root, "200", 4, 7)
	badID := testsupport.PatientFolder(t, root, "Sem ID")
	done := testsupport.PatientFolder(t, root, "300-Bruno")
	doneTemplate := filepath.Join(done, "300_Bruno_Lima.jpg")
	testsupport.WriteJPEG(t, doneTemplate, 10, 10, color.White)
	sent := testsupport.PatientFolder(t, root, "400")
	sentTemplate := filepath.Join(sent, "400_Carla.jpg")
	testsupport.WriteJPEG(t, sentTemplate, 10, 10, color.White)
	if err := os.MkdirAll(filepath.Join(root, ".trash"), 0o755); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, filepath.Join(root, "notes.txt"), 4)

	s := scanner.New(cfg, fakeIndex{sent: sentTemplate})
	report, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Folders) != 5 {
		t.Fatalf("expected 5 folders, got %d", len(report.Folders))
	}
	byPath := map[string]*scanner.Folder{}
	for _, f := range report.Folders {
		byPath[f.Path] = f
	}

	if f := byPath[ready]; f.PatientID != 100 || !f.ReadyToAssemble() || f.ReadyToUpload() {
		t.Fatalf("unexpected ready folder: %+v", f)
	}
	if f := byPath[partial]; f.ReadyToAssemble() || len(f.Missing) != 2 || f.Missing[0] != 4 || f.Missing[1] != 7 {
		t.Fatalf("unexpected partial folder: %+v", f)
	}
	if f := byPath[badID]; !errors.Is(f.IDErr, patientid.ErrInvalidID) || f.ReadyToAssemble() {
		t.Fatalf("unexpected bad-id folder: %+v", f)
	}
	if f := byPath[done]; f.Template != doneTemplate || f.ReadyToAssemble() || !f.ReadyToUpload() {
		t.Fatalf("unexpected done folder: %+v", f)
	}
	if f := byPath[sent]; !f.Uploaded || f.ReadyToUpload() {
		t.Fatalf("expected uploaded folder, got %+v", f)
	}
	if report.AssembleCount() != 1 || report.UploadCount() != 1 {
		t.Fatalf("unexpected counts assemble=%d upload=%d", report.AssembleCount(), report.UploadCount())
	}
}

func TestScanPrefersBackgroundRemovedPhotos(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := testsupport.PatientFolder(t, cfg.Paths.PhotoRoot, "10")
	noBG := filepath.Join(dir, "1_IMG_1001_NO_BG.jpg")
	testsupport.WriteJPEG(t, noBG, 40, 60, color.White)

	folder, err := scanner.New(cfg, nil).ScanFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if folder.Slots[0] != noBG {
		t.Fatalf("expected NO_BG photo in slot 1, got %q", folder.Slots[0])
	}
	if folder.Slots[1] != filepath.Join(dir, "2_IMG_1002.jpg") {
		t.Fatalf("unexpected slot 2: %q", folder.Slots[1])
	}
}

func TestScanObjectiveSubfolder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := testsupport.PatientFolder(t, cfg.Paths.PhotoRoot, "55-Davi")
	sub := testsupport.PatientFolder(t, dir, "objetiva", 8)

	folder, err := scanner.New(cfg, nil).ScanFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if folder.Objective == nil {
		t.Fatal("expected objective folder")
	}
	if folder.Objective.Path != sub || folder.Objective.PatientID != 55 {
		t.Fatalf("unexpected objective: %+v", folder.Objective)
	}
	if folder.Objective.ReadyToAssemble() {
		t.Fatal("objective missing slot 8 must not be ready")
	}
}

func TestObjectivePendingAfterMainTemplate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := testsupport.PatientFolder(t, cfg.Paths.PhotoRoot, "56")
	testsupport.PatientFolder(t, dir, "OBJETIVA")
	testsupport.WriteJPEG(t, filepath.Join(dir, "56_Rita.jpg"), 4, 4, color.White)

	report, err := scanner.New(cfg, nil).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Folders) != 1 {
		t.Fatalf("expected one folder, got %d", len(report.Folders))
	}
	folder := report.Folders[0]
	if folder.ReadyToAssemble() || !folder.ObjectivePending() || !folder.NeedsAssembly() {
		t.Fatalf("expected objective-only work: template=%q objective=%+v", folder.Template, folder.Objective)
	}
	if report.AssembleCount() != 1 {
		t.Fatalf("objective work not counted: %d", report.AssembleCount())
	}

	testsupport.WriteJPEG(t, filepath.Join(folder.Objective.Path, "56_Rita.jpg"), 4, 4, color.White)
	again, err := scanner.New(cfg, nil).ScanFolder(context.Background(), dir)
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if again.NeedsAssembly() || again.Objective.Template == "" {
		t.Fatalf("objective template not detected: %+v", again.Objective)
	}
}

func TestTemplateIgnoresCameraPhotosForLowIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := testsupport.PatientFolder(t, cfg.Paths.PhotoRoot, "1")

	tmpl, err := scanner.FindTemplate(dir, 1)
	if err != nil {
		t.Fatalf("FindTemplate: %v", err)
	}
	if tmpl != "" {
		t.Fatalf("expected no template, got %q", tmpl)
	}
	want := filepath.Join(dir, "1_Eva.jpg")
	testsupport.WriteJPEG(t, want, 4, 4, color.White)
	if tmpl, _ := scanner.FindTemplate(dir, 1); tmpl != want {
		t.Fatalf("expected %q, got %q", want, tmpl)
	}
}

func TestScanMissingRootIsConfigurationError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.PhotoRoot = filepath.Join(t.TempDir(), "absent")

	_, err := scanner.New(cfg, nil).Scan(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMatchSlot(t *testing.T) {
	cases := []struct {
		name string
		slot int
		want bool
	}{
		{"1_IMG_0001.jpg", 1, true},
		{"1_IMG_0001.JPG", 1, true},
		{"4DSC_MG7.jpeg", 4, true},
		{"1_IMG_0001.jpg", 2, false},
		{"1_IMG_.jpg", 1, false},
		{"1_PHOTO_0001.jpg", 1, false},
		{"1_IMG_0001.png", 1, false},
	}
	for _, tc := range cases {
		if got := scanner.MatchSlot(tc.name, tc.slot); got != tc.want {
			t.Fatalf("MatchSlot(%q, %d) = %v, want %v", tc.name, tc.slot, got, tc.want)
		}
	}
}

func TestBackgroundCandidates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"1_IMG_0001.jpg",
		"2_IMG_0002.jpg",
		"2_IMG_0002_NO_BG.jpg",
		"3_IMG_0003.jpeg",
		"4_IMG_0004.jpg",
		"a.jpg",
		"12_Maria_da_Silva.jpg",
		"3_notes.jpg",
	} {
		testsupport.WriteFile(t, filepath.Join(dir, name), 1)
	}

	got, err := scanner.BackgroundCandidates(dir)
	if err != nil {
		t.Fatalf("BackgroundCandidates: %v", err)
	}
	if len(got) != 1 || got[0] != filepath.Join(dir, "1_IMG_0001.jpg") {
		t.Fatalf("unexpected candidates %v", got)
	}
}

func TestFormatSlots(t *testing.T) {
	if got := scanner.FormatSlots([]int{4, 7}); got != "4, 7" {
		t.Fatalf("FormatSlots = %q", got)
	}
	if got := scanner.FormatSlots(nil); got != "" {
		t.Fatalf("FormatSlots(nil) = %q", got)
	}
}
