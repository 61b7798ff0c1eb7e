package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"patientboard/internal/config"
	"patientboard/internal/patientid"
	"patientboard/internal/services"
)

// Folder describes one patient folder on disk.
type Folder struct {
	Path      string
	Name      string
	PatientID int64
	IDErr     error
	Slots     [SlotCount]string
	Missing   []int
	Template  string
	ModTime   time.Time
	// Uploaded is true when the ledger recorded the current template as sent.
	Uploaded bool
	// Objective is the optional objective-exam subfolder, scanned with the
	// parent's patient ID.
	Objective *Folder
}

// ReadyToAssemble reports whether a template can be built from this folder.
func (f *Folder) ReadyToAssemble() bool {
	return f != nil && f.IDErr == nil && len(f.Missing) == 0 && f.Template == ""
}

// ObjectivePending reports whether the main template exists but the
// objective subfolder still needs its own.
func (f *Folder) ObjectivePending() bool {
	return f != nil && f.IDErr == nil && f.Template != "" && f.Objective.ReadyToAssemble()
}

// NeedsAssembly reports whether an assemble pass has work in this folder.
func (f *Folder) NeedsAssembly() bool {
	return f.ReadyToAssemble() || f.ObjectivePending()
}

// ReadyToUpload reports whether the folder holds a template not yet sent.
func (f *Folder) ReadyToUpload() bool {
	return f != nil && f.IDErr == nil && f.Template != "" && !f.Uploaded
}

// Report is the result of one scan.
type Report struct {
	Root    string
	Folders []*Folder
}

// AssembleCount is the number of folders waiting for a template, counting
// folders whose only pending work is the objective template.
func (r Report) AssembleCount() int {
	n := 0
	for _, f := range r.Folders {
		if f.NeedsAssembly() {
			n++
		}
	}
	return n
}

// UploadCount is the number of templates waiting for upload.
func (r Report) UploadCount() int {
	n := 0
	for _, f := range r.Folders {
		if f.ReadyToUpload() {
			n++
		}
	}
	return n
}

// UploadIndex reports templates already uploaded, keyed by folder path.
type UploadIndex interface {
	UploadedTemplates(ctx context.Context) (map[string]string, error)
}

// Scanner classifies patient folders under a root directory.
type Scanner struct {
	root      string
	objective string
	index     UploadIndex
}

// New builds a scanner for the configured photo root. index may be nil, in
// which case no template counts as uploaded.
func New(cfg *config.Config, index UploadIndex) *Scanner {
	return &Scanner{
		root:      cfg.Paths.PhotoRoot,
		objective: cfg.Template.ObjectiveFolder,
		index:     index,
	}
}

// Root returns the directory being scanned.
func (s *Scanner) Root() string {
	return s.root
}

// Scan inspects every patient folder under the root in name order.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	report := Report{Root: s.root}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, services.Wrap(services.ErrConfiguration, "scan", "read photo root", s.root+" does not exist", err)
		}
		return report, services.Wrap(services.ErrExternalTool, "scan", "read photo root", s.root, err)
	}
	uploaded, err := s.uploaded(ctx)
	if err != nil {
		return report, err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		folder, err := s.inspect(filepath.Join(s.root, entry.Name()), uploaded)
		if err != nil {
			return report, err
		}
		report.Folders = append(report.Folders, folder)
	}
	return report, nil
}

// ScanFolder inspects a single folder, which need not live under the root.
func (s *Scanner) ScanFolder(ctx context.Context, path string) (*Folder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scan", "stat folder", abs, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "scan", "stat folder", abs+" is not a directory", nil)
	}
	uploaded, err := s.uploaded(ctx)
	if err != nil {
		return nil, err
	}
	return s.inspect(abs, uploaded)
}

func (s *Scanner) uploaded(ctx context.Context) (map[string]string, error) {
	if s.index == nil {
		return nil, nil
	}
	uploaded, err := s.index.UploadedTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load upload index: %w", err)
	}
	return uploaded, nil
}

func (s *Scanner) inspect(path string, uploaded map[string]string) (*Folder, error) {
	folder := &Folder{Path: path, Name: filepath.Base(path)}
	folder.PatientID, folder.IDErr = patientid.Parse(folder.Name)
	if err := s.fill(folder); err != nil {
		return nil, err
	}
	if folder.Template != "" {
		if sent, ok := uploaded[folder.Path]; ok && sent == folder.Template {
			folder.Uploaded = true
		}
	}
	if s.objective != "" {
		if sub := s.findObjective(path); sub != "" {
			objective := &Folder{
				Path:      sub,
				Name:      filepath.Base(sub),
				PatientID: folder.PatientID,
				IDErr:     folder.IDErr,
			}
			if err := s.fill(objective); err != nil {
				return nil, err
			}
			folder.Objective = objective
		}
	}
	return folder, nil
}

func (s *Scanner) fill(folder *Folder) error {
	info, err := os.Stat(folder.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", folder.Path, err)
	}
	folder.ModTime = info.ModTime()

	names, err := listFiles(folder.Path)
	if err != nil {
		return fmt.Errorf("list %s: %w", folder.Path, err)
	}
	if folder.IDErr == nil {
		for _, name := range names {
			if isTemplateName(name, folder.PatientID) {
				folder.Template = filepath.Join(folder.Path, name)
				break
			}
		}
	}
	folder.Slots, folder.Missing = pickSlots(folder.Path, names, filepath.Base(folder.Template))
	return nil
}

func (s *Scanner) findObjective(path string) string {
	entries, err := os.ReadDir(path)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.EqualFold(entry.Name(), s.objective) {
			return filepath.Join(path, entry.Name())
		}
	}
	return ""
}
