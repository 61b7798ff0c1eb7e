// Package loader decodes and resizes the eight slot photos of a patient
// folder in parallel.
package loader

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/sync/errgroup"

	"patientboard/internal/logging"
	"patientboard/internal/services"
)

// SlotCount is the number of photos on a template.
const SlotCount = 8

// Extra-oral photos (slots 1-3) are portrait, intra-oral (4-8) landscape.
const (
	PortraitWidth   = 716
	PortraitHeight  = 1074
	LandscapeWidth  = 1025
	LandscapeHeight = 732
)

// SlotSize returns the target size for a 1-based slot.
func SlotSize(slot int) (width, height int) {
	if slot <= 3 {
		return PortraitWidth, PortraitHeight
	}
	return LandscapeWidth, LandscapeHeight
}

// Loader reads slot photos with a bounded worker pool.
type Loader struct {
	workers int
	logger  *slog.Logger
}

// New creates a loader with the given parallelism. workers <= 0 uses one
// worker per CPU.
func New(workers int, logger *slog.Logger) *Loader {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Loader{workers: workers, logger: logging.NewComponentLogger(logger, "loader")}
}

// Load decodes and resizes all eight photos. The first failure cancels the
// remaining work.
func (l *Loader) Load(ctx context.Context, slots [SlotCount]string) ([SlotCount]*image.NRGBA, error) {
	var out [SlotCount]*image.NRGBA
	started := time.Now()

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(l.workers)
	for i, path := range slots {
		slot := i + 1
		path := path
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := LoadSlot(slot, path)
			if err != nil {
				return err
			}
			out[slot-1] = img
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return [SlotCount]*image.NRGBA{}, err
	}
	if err := ctx.Err(); err != nil {
		return [SlotCount]*image.NRGBA{}, err
	}
	l.logger.Debug("slot photos loaded",
		logging.Duration("elapsed", time.Since(started)),
		logging.Int("workers", l.workers),
	)
	return out, nil
}

// LoadSlot decodes one photo, applies its EXIF orientation and resizes it to
// the slot's dimensions.
func LoadSlot(slot int, path string) (*image.NRGBA, error) {
	if slot < 1 || slot > SlotCount {
		return nil, services.Wrap(services.ErrValidation, "load", "slot", fmt.Sprintf("slot %d out of range", slot), nil)
	}
	if path == "" {
		return nil, services.Wrap(services.ErrValidation, "load", fmt.Sprintf("slot %d", slot), "photo missing", nil)
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "load", fmt.Sprintf("slot %d", slot), "decode "+path, err)
	}
	width, height := SlotSize(slot)
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// CaptureDate returns the EXIF capture time of a photo.
func CaptureDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode exif %s: %w", path, err)
	}
	return x.DateTime()
}
