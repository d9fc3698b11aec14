package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"glimpse/internal/config"
	"glimpse/internal/entries"
	"glimpse/internal/fileutil"
	"glimpse/internal/logging"
	"glimpse/internal/services"
)

var (
	// ErrAlreadyRunning reports a trigger while a pass is in progress.
	ErrAlreadyRunning = errors.New("archive run already in progress")
	// ErrResourceUnavailable reports that the archive directory cannot be
	// created. The pass is aborted and retried on the next tick.
	ErrResourceUnavailable = services.ErrResourceUnavailable
)

const (
	dateLayout   = "2006-01-02"
	unitExt      = ".zst"
	startupDelay = time.Minute
)

// Store is the slice of the entry store the archiver needs.
type Store interface {
	ColdEntries(ctx context.Context, cutoff time.Time) ([]entries.Entry, error)
	MarkArchived(ctx context.Context, updates []entries.ArchivalUpdate) error
}

// Report summarizes one archive pass.
type Report struct {
	Scanned        int `json:"scanned"`
	Archived       int `json:"archived"`
	AlreadyPresent int `json:"already_present"`
	Skipped        int `json:"skipped"`
	Failed         int `json:"failed"`
}

// Marked is the number of entries the pass marked archived.
func (r Report) Marked() int {
	return r.Archived + r.AlreadyPresent
}

// ProgressFunc observes a pass; done counts processed entries out of total.
type ProgressFunc func(done, total int)

// Notifier receives pass outcomes worth pushing to the user.
type Notifier interface {
	NotifyArchiveCompleted(ctx context.Context, archived, failed int, duration time.Duration) error
	NotifyLowDiskSpace(ctx context.Context, path string, freeMiB, minFreeMiB int64) error
	NotifyError(ctx context.Context, err error, context string) error
}

// Archiver compresses cold screenshots on a timer or on demand.
type Archiver struct {
	settings config.Provider
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	notifier Notifier

	running atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    Report
	lastRun time.Time
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithClock overrides the wall clock used to compute the cold cutoff.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// WithNotifier reports completed passes, failures and low disk space to n.
func WithNotifier(n Notifier) Option {
	return func(a *Archiver) {
		a.notifier = n
	}
}

// New constructs an Archiver.
func New(settings config.Provider, store Store, logger *slog.Logger, opts ...Option) *Archiver {
	a := &Archiver{
		settings: settings,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "archiver"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Running reports whether a pass is in progress.
func (a *Archiver) Running() bool {
	return a.running.Load()
}

// Last returns the report and completion time of the most recent pass.
func (a *Archiver) Last() (Report, time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last, a.lastRun
}

// Start runs a pass shortly after startup and then every archive interval
// while archiving is enabled.
func (a *Archiver) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return errors.New("archiver already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.wg.Add(1)
	go a.loop(runCtx)
	return nil
}

// Stop cancels the timer and waits for an in-flight pass to finish.
func (a *Archiver) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	a.wg.Wait()
}

func (a *Archiver) loop(ctx context.Context) {
	defer a.wg.Done()
	timer := time.NewTimer(startupDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			cfg := a.settings.Current()
			if cfg.Archive.Enabled {
				if _, err := a.Trigger(ctx, nil); err != nil && !errors.Is(err, ErrAlreadyRunning) && !errors.Is(err, context.Canceled) {
					logging.WarnWithContext(a.logger, "scheduled archive pass failed", "archive_pass_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorClass, services.Classify(err)),
						logging.String(logging.FieldImpact, "cold screenshots stay loose until the next pass"),
					)
				}
			}
			timer.Reset(a.settings.Current().ArchiveInterval())
		}
	}
}

// Trigger runs one pass now. A trigger while another pass is running returns
// ErrAlreadyRunning and does nothing. progress may be nil.
func (a *Archiver) Trigger(ctx context.Context, progress ProgressFunc) (Report, error) {
	if !a.running.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRunning
	}
	defer a.running.Store(false)

	ctx = services.WithCycleID(ctx, uuid.NewString())
	started := time.Now()
	report, err := a.run(ctx, progress)

	a.mu.Lock()
	a.last = report
	a.lastRun = a.now()
	a.mu.Unlock()

	switch {
	case err != nil && !errors.Is(err, context.Canceled):
		a.notify(ctx, "archive_error", func(n Notifier, nctx context.Context) error {
			return n.NotifyError(nctx, err, "archive pass")
		})
	case err == nil && (report.Archived > 0 || report.Failed > 0):
		a.notify(ctx, "archive_completed", func(n Notifier, nctx context.Context) error {
			return n.NotifyArchiveCompleted(nctx, report.Archived, report.Failed, time.Since(started))
		})
	}
	return report, err
}

func (a *Archiver) notify(ctx context.Context, event string, send func(Notifier, context.Context) error) {
	if a.notifier == nil {
		return
	}
	if err := send(a.notifier, context.WithoutCancel(ctx)); err != nil {
		logging.WarnWithContext(a.logger, "notification failed", "notification_failed",
			logging.String("notification", event),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the archive result was not pushed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func (a *Archiver) run(ctx context.Context, progress ProgressFunc) (Report, error) {
	cfg := a.settings.Current()
	logger := logging.WithContext(ctx, a.logger)

	root := strings.TrimSpace(cfg.Paths.ArchiveDir)
	if root == "" {
		return Report{}, services.Wrap(services.ErrConfiguration, "archive", "run", "archive_dir is empty", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Report{}, fmt.Errorf("%w: create archive dir %s: %w", ErrResourceUnavailable, root, err)
	}
	a.checkFreeSpace(ctx, logger, root, cfg.Archive.MinFreeMiB)

	cutoff := a.now().Add(-cfg.ColdAge())
	cold, err := a.store.ColdEntries(ctx, cutoff)
	if err != nil {
		return Report{}, fmt.Errorf("list cold entries: %w", err)
	}
	logger.Info("archive pass started",
		logging.Int("candidates", len(cold)),
		logging.Time("cutoff", cutoff),
	)

	var (
		report  Report
		updates []entries.ArchivalUpdate
	)
	for i, entry := range cold {
		if ctx.Err() != nil {
			break
		}
		report.Scanned++
		update, outcome := a.archiveEntry(logger, cfg, root, entry)
		switch outcome {
		case outcomeArchived:
			report.Archived++
			updates = append(updates, update)
		case outcomeAlreadyPresent:
			report.AlreadyPresent++
			updates = append(updates, update)
		case outcomeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
		if progress != nil {
			progress(i+1, len(cold))
		}
	}

	// Files already moved stay moved even when the commit below fails; the
	// next pass finds the units and marks the entries then.
	if err := a.store.MarkArchived(context.WithoutCancel(ctx), updates); err != nil {
		logging.ErrorWithContext(logger, "failed to record archived entries", "archive_commit_failed",
			logging.Error(err),
			logging.Int("updates", len(updates)),
			logging.String(logging.FieldErrorHint, "check database access; the next pass will mark existing units"),
		)
		return report, fmt.Errorf("commit archive updates: %w", err)
	}

	logger.Info("archive pass finished",
		logging.Int("scanned", report.Scanned),
		logging.Int("archived", report.Archived),
		logging.Int("already_present", report.AlreadyPresent),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed),
	)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeArchived
	outcomeAlreadyPresent
	outcomeSkipped
)

func (a *Archiver) archiveEntry(logger *slog.Logger, cfg *config.Config, root string, entry entries.Entry) (entries.ArchivalUpdate, outcome) {
	logger = logger.With(logging.String(logging.FieldEntryID, entry.ID))
	if strings.TrimSpace(entry.Filename) == "" {
		logger.Debug("entry has no filename; skipped")
		return entries.ArchivalUpdate{}, outcomeSkipped
	}

	rel := UnitName(entry)
	target := filepath.Join(root, rel)
	loose := filepath.Join(cfg.Paths.ScreenshotsDir, entry.Filename)
	update := entries.ArchivalUpdate{ID: entry.ID, ArchivedFilename: rel}

	present, err := fileutil.FileExists(target)
	if err != nil {
		a.warnEntry(logger, "failed to stat archive unit", err)
		return update, outcomeFailed
	}
	if present {
		a.removeLoose(logger, loose)
		return update, outcomeAlreadyPresent
	}

	data, err := os.ReadFile(loose)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("loose screenshot missing; skipped", logging.String("path", loose))
			return update, outcomeSkipped
		}
		a.warnEntry(logger, "failed to read screenshot", err)
		return update, outcomeFailed
	}

	unit, err := Encode(data)
	if err != nil {
		a.warnEntry(logger, "failed to compress screenshot", err)
		return update, outcomeFailed
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		a.warnEntry(logger, "failed to create archive date directory", err)
		return update, outcomeFailed
	}
	if err := fileutil.WriteFileAtomic(target, unit, 0o644); err != nil {
		_ = fileutil.RemoveIfExists(target)
		a.warnEntry(logger, "failed to write archive unit", err)
		return update, outcomeFailed
	}
	a.removeLoose(logger, loose)
	logger.Debug("screenshot archived",
		logging.String("unit", rel),
		logging.Int("original_bytes", len(data)),
		logging.Int("unit_bytes", len(unit)),
	)
	return update, outcomeArchived
}

func (a *Archiver) removeLoose(logger *slog.Logger, path string) {
	if err := fileutil.RemoveIfExists(path); err != nil {
		logging.WarnWithContext(logger, "failed to remove archived screenshot", "archive_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the loose copy keeps using disk space"),
		)
	}
}

func (a *Archiver) warnEntry(logger *slog.Logger, msg string, err error) {
	logging.WarnWithContext(logger, msg, "archive_entry_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check archive_dir permissions and free space"),
		logging.String(logging.FieldImpact, "entry stays loose and is retried next pass"),
	)
}

func (a *Archiver) checkFreeSpace(ctx context.Context, logger *slog.Logger, root string, minFreeMiB int) {
	if minFreeMiB <= 0 {
		return
	}
	free, err := fileutil.FreeBytes(root)
	if err != nil {
		logger.Debug("free space probe failed", logging.Error(err))
		return
	}
	if free < uint64(minFreeMiB)<<20 {
		logging.WarnWithContext(logger, "archive volume is low on space", "archive_low_space",
			logging.Int64("free_mib", int64(free>>20)),
			logging.Int("min_free_mib", minFreeMiB),
			logging.String(logging.FieldErrorHint, "free space on the archive volume or lower archive.min_free_mib"),
			logging.String(logging.FieldImpact, "archive writes may start failing"),
		)
		a.notify(ctx, "archive_low_space", func(n Notifier, nctx context.Context) error {
			return n.NotifyLowDiskSpace(nctx, root, int64(free>>20), int64(minFreeMiB))
		})
	}
}

// UnitName is the archive-root-relative path of entry's unit:
// <YYYY-MM-DD>/<filename>.zst, dated by the capture time in local time.
func UnitName(entry entries.Entry) string {
	return filepath.Join(entry.Timestamp.Local().Format(dateLayout), entry.Filename+unitExt)
}
