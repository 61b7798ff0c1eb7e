package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"patientboard/internal/composer"
	"patientboard/internal/config"
	"patientboard/internal/ledger"
	"patientboard/internal/logging"
	"patientboard/internal/notifications"
	"patientboard/internal/scanner"
	"patientboard/internal/services"
	"patientboard/internal/uploader"
)

// ErrLocked reports that another batch holds the state directory lock.
var ErrLocked = errors.New("another patientboard batch is running")

// Assembler builds templates for a folder.
type Assembler interface {
	Assemble(ctx context.Context, folder *scanner.Folder) (composer.Result, error)
}

// Uploader sends a folder's template to the patient service.
type Uploader interface {
	Upload(ctx context.Context, folder *scanner.Folder) (uploader.Result, error)
}

// Result summarises one batch.
type Result struct {
	RunID     string
	Assembled int
	Uploaded  int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

func (r *Result) add(other Result) {
	r.Assembled += other.Assembled
	r.Uploaded += other.Uploaded
	r.Failed += other.Failed
	r.Skipped += other.Skipped
}

// Runner coordinates scanning, ledger bookkeeping and the two stages.
type Runner struct {
	store        *ledger.Store
	scanner      *scanner.Scanner
	assembler    Assembler
	uploader     Uploader
	notifier     notifications.Service
	logger       *slog.Logger
	lockPath     string
	pollInterval time.Duration
}

// Option configures optional Runner behaviour.
type Option func(*Runner)

// WithNotifier overrides the notification service built from config.
func WithNotifier(n notifications.Service) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithPollInterval overrides workflow.poll_interval for Watch.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// New constructs a Runner. assembler or up may be nil when the caller only
// runs the other stage.
func New(cfg *config.Config, store *ledger.Store, scan *scanner.Scanner, assembler Assembler, up Uploader, logger *slog.Logger, opts ...Option) *Runner {
	interval := time.Duration(cfg.Workflow.PollInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	r := &Runner{
		store:        store,
		scanner:      scan,
		assembler:    assembler,
		uploader:     up,
		notifier:     notifications.NewService(cfg),
		logger:       logging.NewComponentLogger(logger, "batch"),
		lockPath:     cfg.LockPath(),
		pollInterval: interval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AssembleAll builds templates for every ready folder, or only for dirs
// when given.
func (r *Runner) AssembleAll(ctx context.Context, dirs ...string) (Result, error) {
	return r.locked(ctx, "assemble", func(ctx context.Context) (Result, error) {
		return r.assemblePass(ctx, dirs)
	})
}

// UploadAll uploads every pending template, or only those in dirs when
// given. Explicit folders without a template are reported as failures.
func (r *Runner) UploadAll(ctx context.Context, dirs ...string) (Result, error) {
	return r.locked(ctx, "upload", func(ctx context.Context) (Result, error) {
		return r.uploadPass(ctx, dirs)
	})
}

// Run assembles and then uploads everything under the photo root.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	return r.locked(ctx, "run", r.runPass)
}

// Watch repeats Run every poll interval until ctx is cancelled. Pass errors
// are logged and the loop continues.
func (r *Runner) Watch(ctx context.Context) error {
	lock, err := r.acquire()
	if err != nil {
		return err
	}
	defer r.release(lock)

	r.logger.Info("watching photo root",
		logging.String("root", r.scanner.Root()),
		logging.Duration("poll_interval", r.pollInterval),
	)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := r.execute(ctx, "run", r.runPass); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.ErrorWithContext(r.logger, "batch pass failed", "batch_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "retrying on the next poll"),
			)
			if nerr := r.notifier.NotifyError(ctx, err, "watch"); nerr != nil {
				r.logger.Warn("notification failed", logging.Error(nerr))
			}
		}
		select {
		case <-ctx.Done():
			r.logger.Info("watch stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) runPass(ctx context.Context) (Result, error) {
	var total Result
	if r.assembler != nil {
		res, err := r.assemblePass(ctx, nil)
		total.add(res)
		if err != nil {
			return total, err
		}
	}
	if r.uploader != nil {
		res, err := r.uploadPass(ctx, nil)
		total.add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *Runner) locked(ctx context.Context, command string, fn func(context.Context) (Result, error)) (Result, error) {
	lock, err := r.acquire()
	if err != nil {
		return Result{}, err
	}
	defer r.release(lock)
	return r.execute(ctx, command, fn)
}

func (r *Runner) acquire() (*flock.Flock, error) {
	lock := flock.New(r.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, r.lockPath)
	}
	return lock, nil
}

func (r *Runner) release(lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		r.logger.Warn("failed to release batch lock", logging.String("lock", r.lockPath), logging.Error(err))
	}
}

// execute wraps one pass with a run ID, stuck-row recovery, timing and the
// completion notification.
func (r *Runner) execute(ctx context.Context, command string, fn func(context.Context) (Result, error)) (Result, error) {
	started := time.Now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	if n, err := r.store.ResetStuck(ctx); err != nil {
		return Result{RunID: runID}, err
	} else if n > 0 {
		logging.WarnWithContext(logger, "reset interrupted folders", "ledger_reset",
			logging.Int64("count", n),
			logging.String(logging.FieldImpact, "interrupted work restarts from its last stable status"),
		)
	}

	logger.Info("batch started", logging.String("command", command))
	result, err := fn(ctx)
	result.RunID = runID
	result.Duration = time.Since(started)
	logger.Info("batch finished",
		logging.String("command", command),
		logging.Int("assembled", result.Assembled),
		logging.Int("uploaded", result.Uploaded),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
		logging.Duration("elapsed", result.Duration),
		logging.String(logging.FieldEventType, "batch_finished"),
	)

	if result.Assembled+result.Uploaded+result.Failed > 0 {
		summary := notifications.BatchSummary{
			Command:   command,
			Assembled: result.Assembled,
			Uploaded:  result.Uploaded,
			Failed:    result.Failed,
			Duration:  result.Duration,
		}
		if nerr := r.notifier.NotifyBatchCompleted(context.WithoutCancel(ctx), summary); nerr != nil {
			logger.Warn("notification failed", logging.Error(nerr))
		}
	}
	return result, err
}
