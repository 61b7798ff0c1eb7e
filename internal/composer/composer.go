// Package composer builds patient templates: one header block and eight
// resized photos on a fixed canvas, written next to the photos as a JPEG.
package composer

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"patientboard/internal/config"
	"patientboard/internal/fileutil"
	"patientboard/internal/header"
	"patientboard/internal/loader"
	"patientboard/internal/logging"
	"patientboard/internal/patientapi"
	"patientboard/internal/scanner"
	"patientboard/internal/services"
)

// RecordLookup finds the API record for a patient.
type RecordLookup interface {
	Lookup(ctx context.Context, patientID int64) (*patientapi.Record, error)
}

// PhotoLoader decodes and resizes slot photos.
type PhotoLoader interface {
	Load(ctx context.Context, slots [loader.SlotCount]string) ([loader.SlotCount]*image.NRGBA, error)
}

// Result describes the templates written for one folder.
type Result struct {
	Template  string
	Objective string
	RecordID  int64
}

// Composer assembles templates for scanned folders.
type Composer struct {
	records    RecordLookup
	photos     PhotoLoader
	fonts      *header.Fonts
	background image.Image
	quality    int
	logger     *slog.Logger
}

// New loads fonts and the optional background image from configuration.
func New(cfg *config.Config, records RecordLookup, photos PhotoLoader, logger *slog.Logger) (*Composer, error) {
	fonts, err := header.LoadFonts(cfg.Template.FontBold, cfg.Template.FontRegular, cfg.Template.FontSize)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "assemble", "load fonts", "", err)
	}
	background, err := LoadBackground(cfg.Template.Background)
	if err != nil {
		fonts.Close()
		return nil, err
	}
	return &Composer{
		records:    records,
		photos:     photos,
		fonts:      fonts,
		background: background,
		quality:    cfg.Template.JPEGQuality,
		logger:     logging.NewComponentLogger(logger, "composer"),
	}, nil
}

// LoadBackground decodes the configured background and checks it can hold
// every region. An empty path returns nil.
func LoadBackground(path string) (image.Image, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "assemble", "load background", path, err)
	}
	need := MinCanvas()
	if b := img.Bounds(); b.Dx() < need.X || b.Dy() < need.Y {
		return nil, services.Wrap(services.ErrConfiguration, "assemble", "load background",
			fmt.Sprintf("%s is %dx%d, need at least %dx%d", path, b.Dx(), b.Dy(), need.X, need.Y), nil)
	}
	return img, nil
}

// Close releases font resources.
func (c *Composer) Close() error {
	return c.fonts.Close()
}

// Assemble looks up the patient, renders the header, loads the photos and
// writes the template. When the folder has a complete objective subfolder
// without a template, a second template is written there from the same
// record. A main template already on disk is kept, so a folder whose
// objective failed or arrived late only gets the objective built.
func (c *Composer) Assemble(ctx context.Context, folder *scanner.Folder) (Result, error) {
	if folder.IDErr != nil {
		return Result{}, services.Wrap(services.ErrValidation, "assemble", "identify patient", folder.Name, folder.IDErr)
	}
	existing := folder.Template
	if existing == "" && len(folder.Missing) > 0 {
		return Result{}, services.Wrap(services.ErrValidation, "assemble", "collect photos",
			"missing photos for slots "+scanner.FormatSlots(folder.Missing), nil)
	}
	if existing != "" && !folder.ObjectivePending() {
		return Result{Template: existing}, nil
	}
	ctx = services.WithPatientID(ctx, folder.PatientID)
	logger := logging.WithContext(ctx, c.logger)

	record, err := c.records.Lookup(ctx, folder.PatientID)
	if err != nil {
		return Result{}, err
	}
	info, err := c.headerInfo(record, folder)
	if err != nil {
		return Result{}, err
	}
	head := header.Render(c.fonts, info)
	name := TemplateName(folder.PatientID, record.Patient.Name)

	result := Result{RecordID: record.ID, Template: existing}
	if existing == "" {
		result.Template, err = c.build(ctx, folder, head, name)
		if err != nil {
			return result, err
		}
		logger.Info("template written",
			logging.String("path", result.Template),
			logging.Int64("record_id", record.ID),
			logging.String(logging.FieldEventType, "template_written"),
		)
	} else {
		logger.Debug("template already present; building objective only", logging.String("path", existing))
	}

	if obj := folder.Objective; obj != nil {
		switch {
		case obj.Template != "":
			logger.Debug("objective template already present", logging.String("path", obj.Template))
		case len(obj.Missing) > 0:
			logging.WarnWithContext(logger, "objective folder incomplete; skipped", "objective_skipped",
				logging.String(logging.FieldFolder, obj.Path),
				logging.String("missing", scanner.FormatSlots(obj.Missing)),
				logging.String(logging.FieldImpact, "no objective template for this patient"),
			)
		default:
			result.Objective, err = c.build(ctx, obj, head, name)
			if err != nil {
				return result, err
			}
			logger.Info("objective template written",
				logging.String("path", result.Objective),
				logging.String(logging.FieldEventType, "objective_written"),
			)
		}
	}
	return result, nil
}

func (c *Composer) build(ctx context.Context, folder *scanner.Folder, head image.Image, name string) (string, error) {
	photos, err := c.photos.Load(ctx, folder.Slots)
	if err != nil {
		return "", err
	}
	canvas := ComposeOn(c.background, head, photos)
	target := filepath.Join(folder.Path, name)
	if err := WriteJPEG(target, canvas, c.quality); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "assemble", "write template", target, err)
	}
	return target, nil
}

func (c *Composer) headerInfo(record *patientapi.Record, folder *scanner.Folder) (header.Info, error) {
	if strings.TrimSpace(record.Patient.Name) == "" {
		return header.Info{}, services.Wrap(services.ErrValidation, "assemble", "read record",
			fmt.Sprintf("record %d has no patient name", record.ID), nil)
	}
	birth, err := header.ParseBirthdate(record.Patient.Birthdate)
	if err != nil {
		return header.Info{}, services.Wrap(services.ErrValidation, "assemble", "read record", "", err)
	}
	appointment, err := header.ParseAppointment(record.Date)
	if err != nil {
		// Fall back to when the frontal photo was taken.
		frontal := folder.Slots[0]
		if frontal == "" && folder.Objective != nil {
			frontal = folder.Objective.Slots[0]
		}
		taken, exifErr := loader.CaptureDate(frontal)
		if exifErr != nil {
			return header.Info{}, services.Wrap(services.ErrValidation, "assemble", "read record", "", err)
		}
		c.logger.Debug("appointment date taken from photo exif", logging.Int64(logging.FieldPatientID, folder.PatientID))
		appointment = taken
	}
	return header.Info{
		PatientName: strings.TrimSpace(record.Patient.Name),
		DentistName: strings.TrimSpace(record.Dentist.Name),
		Birthdate:   birth,
		Appointment: appointment,
	}, nil
}

// WriteJPEG encodes img to path atomically.
func WriteJPEG(path string, img image.Image, quality int) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return fmt.Errorf("encode jpeg: %w", err)
		}
		return nil
	})
}
