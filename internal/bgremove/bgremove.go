// Package bgremove wraps the external rembg tool to strip backgrounds from
// extra-oral portraits. Results are flattened onto white and saved beside
// the source as "<stem>_NO_BG.jpg", which the scanner then prefers for the
// slot.
package bgremove

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"patientboard/internal/config"
	"patientboard/internal/fileutil"
	"patientboard/internal/logging"
	"patientboard/internal/scanner"
	"patientboard/internal/services"
)

var commandContext = exec.CommandContext

const maxToolOutput = 1024

// Result counts the photos handled by a folder or root pass.
type Result struct {
	Processed int
	Failed    int
	Outputs   []string
}

// Remover runs background removal.
type Remover struct {
	command      string
	model        string
	alphaMatting bool
	quality      int
	logger       *slog.Logger
}

// New builds a remover from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Remover {
	return &Remover{
		command:      cfg.BGRemove.Command,
		model:        cfg.BGRemove.Model,
		alphaMatting: cfg.BGRemove.AlphaMatting,
		quality:      cfg.Template.JPEGQuality,
		logger:       logging.NewComponentLogger(logger, "bgremove"),
	}
}

// Remove processes one photo and returns the NO_BG output path. Only .jpg
// inputs are accepted.
func (r *Remover) Remove(ctx context.Context, input string) (string, error) {
	if !strings.EqualFold(filepath.Ext(input), ".jpg") {
		return "", services.Wrap(services.ErrValidation, "rmbg", "check input", input+" is not a .jpg file", nil)
	}
	if scanner.IsNoBG(filepath.Base(input)) {
		return "", services.Wrap(services.ErrValidation, "rmbg", "check input", input+" already has its background removed", nil)
	}
	if _, err := os.Stat(input); err != nil {
		return "", services.Wrap(services.ErrValidation, "rmbg", "check input", input, err)
	}

	workDir, err := os.MkdirTemp("", "patientboard-rmbg-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)
	cutout := filepath.Join(workDir, "cutout.png")

	started := time.Now()
	cmd := commandContext(ctx, r.command, r.args(input, cutout)...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", services.Wrap(services.ErrExternalTool, "rmbg", r.command, tail(string(output)), err)
	}

	fg, err := imaging.Open(cutout)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "rmbg", "read cutout", "", err)
	}
	flat := Flatten(fg)

	target := scanner.NoBGPath(input)
	if err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		return imaging.Encode(w, flat, imaging.JPEG, imaging.JPEGQuality(r.quality))
	}); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "rmbg", "write output", target, err)
	}
	r.logger.Info("background removed",
		logging.String("input", input),
		logging.String("output", target),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "background_removed"),
	)
	return target, nil
}

func (r *Remover) args(input, output string) []string {
	args := []string{"i", "-m", r.model}
	if r.alphaMatting {
		args = append(args, "-a")
	}
	return append(args, input, output)
}

// RemoveFolder processes every background candidate in one patient folder.
// Individual failures are logged and counted.
func (r *Remover) RemoveFolder(ctx context.Context, dir string) (Result, error) {
	var result Result
	candidates, err := scanner.BackgroundCandidates(dir)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "rmbg", "list folder", dir, err)
	}
	for _, input := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		out, err := r.Remove(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Failed++
			logging.ErrorWithContext(r.logger, "background removal failed", "background_remove_failed",
				logging.String(logging.FieldFolder, dir),
				logging.String("input", input),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that rembg is installed and the photo opens"),
			)
			continue
		}
		result.Processed++
		result.Outputs = append(result.Outputs, out)
	}
	return result, nil
}

// RemoveAll runs RemoveFolder over every patient folder under root.
func (r *Remover) RemoveAll(ctx context.Context, root string) (Result, error) {
	var total Result
	entries, err := os.ReadDir(root)
	if err != nil {
		return total, services.Wrap(services.ErrConfiguration, "rmbg", "read photo root", root, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		res, err := r.RemoveFolder(ctx, filepath.Join(root, entry.Name()))
		total.Processed += res.Processed
		total.Failed += res.Failed
		total.Outputs = append(total.Outputs, res.Outputs...)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Flatten composites an image with transparency onto a white background.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func tail(output string) string {
	output = strings.TrimSpace(output)
	if len(output) > maxToolOutput {
		output = "..." + output[len(output)-maxToolOutput:]
	}
	return output
}
