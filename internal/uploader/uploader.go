// Package uploader sends finished templates to the patient API.
package uploader

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	"log/slog"
	"os"
	"path/filepath"

	"patientboard/internal/logging"
	"patientboard/internal/patientapi"
	"patientboard/internal/scanner"
	"patientboard/internal/services"
)

// API is the subset of the patient client the uploader needs.
type API interface {
	Lookup(ctx context.Context, patientID int64) (*patientapi.Record, error)
	UploadTemplate(ctx context.Context, recordID int64, filename string, data []byte) error
}

// Result describes one completed upload.
type Result struct {
	Template string
	RecordID int64
	Bytes    int
}

// Uploader sends templates for scanned folders.
type Uploader struct {
	api    API
	logger *slog.Logger
}

// New builds an uploader.
func New(api API, logger *slog.Logger) *Uploader {
	return &Uploader{api: api, logger: logging.NewComponentLogger(logger, "uploader")}
}

// Upload finds the folder's template, resolves the patient's record and PUTs
// the file. The template must decode as a JPEG before it is sent.
func (u *Uploader) Upload(ctx context.Context, folder *scanner.Folder) (Result, error) {
	if folder.IDErr != nil {
		return Result{}, services.Wrap(services.ErrValidation, "upload", "identify patient", folder.Name, folder.IDErr)
	}
	ctx = services.WithPatientID(ctx, folder.PatientID)

	template := folder.Template
	if template == "" {
		found, err := scanner.FindTemplate(folder.Path, folder.PatientID)
		if err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, "upload", "find template", folder.Path, err)
		}
		template = found
	}
	if template == "" {
		return Result{}, services.Wrap(services.ErrValidation, "upload", "find template", "template does not exist", nil)
	}

	data, err := os.ReadFile(template)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "upload", "read template", template, err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err != nil || format != "jpeg" {
		if err == nil {
			err = errNotJPEG(format)
		}
		return Result{}, services.Wrap(services.ErrValidation, "upload", "verify template", template, err)
	}

	record, err := u.api.Lookup(ctx, folder.PatientID)
	if err != nil {
		return Result{}, err
	}
	if err := u.api.UploadTemplate(ctx, record.ID, filepath.Base(template), data); err != nil {
		return Result{}, err
	}

	logging.WithContext(ctx, u.logger).Info("template uploaded",
		logging.String("path", template),
		logging.Int64("record_id", record.ID),
		logging.Int("bytes", len(data)),
		logging.String(logging.FieldEventType, "template_uploaded"),
	)
	return Result{Template: template, RecordID: record.ID, Bytes: len(data)}, nil
}

type errNotJPEG string

func (e errNotJPEG) Error() string {
	return "template is " + string(e) + ", not jpeg"
}
