package batch

import (
	"context"
	"log/slog"

	"patientboard/internal/ledger"
	"patientboard/internal/logging"
	"patientboard/internal/scanner"
	"patientboard/internal/services"
)

const (
	stageAssemble = "assemble"
	stageUpload   = "upload"
)

// folders scans the whole root, or just dirs when given.
func (r *Runner) folders(ctx context.Context, dirs []string) ([]*scanner.Folder, error) {
	if len(dirs) == 0 {
		report, err := r.scanner.Scan(ctx)
		if err != nil {
			return nil, err
		}
		return report.Folders, nil
	}
	out := make([]*scanner.Folder, 0, len(dirs))
	for _, dir := range dirs {
		folder, err := r.scanner.ScanFolder(ctx, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, folder)
	}
	return out, nil
}

// track records the folder in the ledger and returns its row plus a
// context and logger carrying the folder's identity.
func (r *Runner) track(ctx context.Context, stage string, folder *scanner.Folder) (context.Context, *slog.Logger, *ledger.Entry, error) {
	ctx = services.WithStage(ctx, stage)
	if folder.IDErr == nil {
		ctx = services.WithPatientID(ctx, folder.PatientID)
	}
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldFolder, folder.Path))
	entry, err := r.store.Upsert(ctx, folder.Path, folder.PatientID, folder.ModTime)
	return ctx, logger, entry, err
}

// assemblePass builds templates. A full scan only touches folders with work
// to do; folders named explicitly are always attempted so their problems
// reach the journal.
func (r *Runner) assemblePass(ctx context.Context, dirs []string) (Result, error) {
	var result Result
	folders, err := r.folders(ctx, dirs)
	if err != nil {
		return result, err
	}
	explicit := len(dirs) > 0
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !explicit && folder.Template == "" && !folder.ReadyToAssemble() {
			logging.WithContext(ctx, r.logger).Debug("folder not ready; skipped",
				logging.String(logging.FieldFolder, folder.Path),
				logging.String("reason", notReadyReason(folder)),
			)
			result.Skipped++
			continue
		}
		fctx, logger, entry, err := r.track(ctx, stageAssemble, folder)
		if err != nil {
			return result, err
		}

		switch {
		case entry.Status == ledger.StatusReview:
			logger.Debug("folder held for review", logging.String("reason", entry.ErrorMessage))
			result.Skipped++
			continue
		case folder.ObjectivePending():
			if err := r.assembleObjective(fctx, logger, folder, entry, &result); err != nil {
				return result, err
			}
			continue
		case folder.Template != "":
			if err := r.adoptTemplate(fctx, folder, entry); err != nil {
				return result, err
			}
			result.Skipped++
			continue
		}

		if err := r.store.MarkAssembling(fctx, folder.Path, runIDOf(fctx)); err != nil {
			return result, err
		}
		res, err := r.assembler.Assemble(fctx, folder)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			if ferr := r.fail(fctx, logger, folder, "template assembly failed", "assemble_failed", err); ferr != nil {
				return result, ferr
			}
			result.Failed++
			continue
		}
		if err := r.store.MarkAssembled(fctx, folder.Path, res.Template, res.RecordID); err != nil {
			return result, err
		}
		result.Assembled++
	}
	return result, nil
}

// adoptTemplate records a template found on disk for rows that never saw it
// written.
func (r *Runner) adoptTemplate(ctx context.Context, folder *scanner.Folder, entry *ledger.Entry) error {
	if entry.Status != ledger.StatusPending && entry.Status != ledger.StatusFailed {
		return nil
	}
	return r.store.MarkAssembled(ctx, folder.Path, folder.Template, 0)
}

// assembleObjective builds the objective template of a folder whose main
// template already exists. Uploaded rows keep their status so the main
// template is not sent twice; their objective failures are only logged.
func (r *Runner) assembleObjective(ctx context.Context, logger *slog.Logger, folder *scanner.Folder, entry *ledger.Entry, result *Result) error {
	settled := entry.Status == ledger.StatusUploaded || entry.Status == ledger.StatusAssembled
	res, err := r.assembler.Assemble(ctx, folder)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.Failed++
		if settled {
			logging.ErrorWithContext(logger, "objective template assembly failed", "objective_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "retried on the next pass"),
			)
			return nil
		}
		return r.fail(ctx, logger, folder, "objective template assembly failed", "objective_failed", err)
	}
	result.Assembled++
	if settled {
		return nil
	}
	return r.store.MarkAssembled(ctx, folder.Path, res.Template, res.RecordID)
}

func notReadyReason(folder *scanner.Folder) string {
	switch {
	case folder.IDErr != nil:
		return "folder name is not a patient id"
	case len(folder.Missing) > 0:
		return "missing photos for slots " + scanner.FormatSlots(folder.Missing)
	default:
		return "nothing to assemble"
	}
}

func (r *Runner) uploadPass(ctx context.Context, dirs []string) (Result, error) {
	var result Result
	folders, err := r.folders(ctx, dirs)
	if err != nil {
		return result, err
	}
	explicit := len(dirs) > 0
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		ready := folder.ReadyToUpload() || (explicit && !folder.Uploaded)
		if !ready {
			result.Skipped++
			continue
		}
		fctx, logger, entry, err := r.track(ctx, stageUpload, folder)
		if err != nil {
			return result, err
		}
		if entry.Status == ledger.StatusReview && !explicit {
			logger.Debug("folder held for review", logging.String("reason", entry.ErrorMessage))
			result.Skipped++
			continue
		}

		if err := r.store.MarkUploading(fctx, folder.Path, runIDOf(fctx)); err != nil {
			return result, err
		}
		res, err := r.uploader.Upload(fctx, folder)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			if ferr := r.fail(fctx, logger, folder, "upload failed", "upload_failed", err); ferr != nil {
				return result, ferr
			}
			result.Failed++
			continue
		}
		if err := r.store.MarkUploaded(fctx, folder.Path, res.Template, res.RecordID); err != nil {
			return result, err
		}
		result.Uploaded++
	}
	return result, nil
}

// fail records the error on the ledger row and logs it at ERROR, which also
// appends it to the error journal.
func (r *Runner) fail(ctx context.Context, logger *slog.Logger, folder *scanner.Folder, msg, eventType string, cause error) error {
	status := services.FailureStatus(cause)
	impact := "retried on the next pass"
	if status == ledger.StatusReview {
		impact = "held for review until the folder changes or is retried"
	}
	logging.ErrorWithContext(logger, msg, eventType,
		logging.Error(cause),
		logging.String("resolved_status", string(status)),
		logging.String(logging.FieldImpact, impact),
	)
	return r.store.MarkFailed(ctx, folder.Path, status, cause.Error())
}

func runIDOf(ctx context.Context) string {
	id, _ := services.RunIDFromContext(ctx)
	return id
}
