package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"glimpse/internal/archive"
	"glimpse/internal/config"
	"glimpse/internal/deps"
	"glimpse/internal/detector"
	"glimpse/internal/entries"
	"glimpse/internal/logging"
	"glimpse/internal/scheduler"
	"glimpse/internal/services"
)

// Daemon coordinates capture, archiving and the read surfaces, and enforces
// single-instance execution.
type Daemon struct {
	settings  config.Provider
	logger    *slog.Logger
	store     *entries.Store
	scheduler *scheduler.Scheduler
	archiver  *archive.Archiver
	detector  *detector.Detector
	logPath   string

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	hotplug *hotplugMonitor

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Dependencies groups the components a Daemon coordinates.
type Dependencies struct {
	Settings  config.Provider
	Store     *entries.Store
	Scheduler *scheduler.Scheduler
	Archiver  *archive.Archiver
	Detector  *detector.Detector
	Logger    *slog.Logger
	// LogPath is the current daemon log file, tailed by `glimpse logs`.
	LogPath string
}

// ArchiveStatus describes the archiver.
type ArchiveStatus struct {
	Enabled bool           `json:"enabled"`
	Running bool           `json:"running"`
	LastRun time.Time      `json:"last_run,omitempty"`
	Last    archive.Report `json:"last"`
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool            `json:"running"`
	PID          int             `json:"pid"`
	Capture      scheduler.Stats `json:"capture"`
	Archive      ArchiveStatus   `json:"archive"`
	Entries      entries.Stats   `json:"entries"`
	Displays     []int           `json:"displays"`
	Hotplug      bool            `json:"hotplug"`
	Dependencies []deps.Status   `json:"dependencies"`
	DatabasePath string          `json:"database_path"`
	LockFilePath string          `json:"lock_file_path"`
	EntriesError string          `json:"entries_error,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(d Dependencies) (*Daemon, error) {
	if d.Settings == nil || d.Store == nil || d.Scheduler == nil || d.Archiver == nil || d.Detector == nil {
		return nil, errors.New("daemon requires settings, store, scheduler, archiver, and detector")
	}
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	cfg := d.Settings.Current()
	lockPath := filepath.Join(cfg.Paths.DataDir, "glimpsed.lock")
	daemon := &Daemon{
		settings:  d.Settings,
		logger:    logger,
		store:     d.Store,
		scheduler: d.Scheduler,
		archiver:  d.Archiver,
		detector:  d.Detector,
		logPath:   d.LogPath,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	daemon.hotplug = newHotplugMonitor(logger, d.Detector.Invalidate)
	api, err := newAPIServer(cfg, daemon, logger)
	if err != nil {
		return nil, err
	}
	daemon.api = api
	return daemon, nil
}

// Start acquires the daemon lock and launches the capture loop, the archiver,
// the hotplug monitor and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another glimpse daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.scheduler.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.archiver.Start(d.ctx); err != nil {
		d.scheduler.Stop()
		d.abortStart()
		return fmt.Errorf("start archiver: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.archiver.Stop()
		d.scheduler.Stop()
		d.abortStart()
		return err
	}
	if err := d.hotplug.Start(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "hotplug monitor unavailable", "hotplug_start_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "display changes are detected on the next capture cycle"),
		)
	}

	d.running.Store(true)
	d.logger.Info("glimpse daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.hotplug.Stop()
	d.api.stop()
	d.scheduler.Stop()
	d.archiver.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("glimpse daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon holds its lock and runs its services.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddr returns the bound HTTP API address, or "" when the API is disabled
// or not started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Pause stops periodic capture until Resume.
func (d *Daemon) Pause() {
	d.scheduler.Pause()
	d.logger.Info("capture paused", logging.String(logging.FieldEventType, "capture_paused"))
}

// Resume re-enables periodic capture.
func (d *Daemon) Resume() {
	d.scheduler.Resume()
	d.logger.Info("capture resumed", logging.String(logging.FieldEventType, "capture_resumed"))
}

// CaptureNow captures and stores every display immediately, ignoring pause,
// idle and the change detector.
func (d *Daemon) CaptureNow(ctx context.Context) (bool, error) {
	return d.scheduler.CaptureNow(ctx)
}

// ArchiveNow runs one archive pass.
func (d *Daemon) ArchiveNow(ctx context.Context) (archive.Report, error) {
	return d.archiver.Trigger(ctx, nil)
}

// Entries lists entries matching filter.
func (d *Daemon) Entries(ctx context.Context, filter entries.Filter) ([]entries.Entry, error) {
	return d.store.Query(ctx, filter)
}

// Search returns the newest entries whose title, text or app name contain text.
func (d *Daemon) Search(ctx context.Context, text string, limit int) ([]entries.Entry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "search", "search text is required", nil)
	}
	return d.store.Search(ctx, text, limit)
}

// Entry returns one entry by id.
func (d *Daemon) Entry(ctx context.Context, id string) (*entries.Entry, error) {
	return d.store.GetByID(ctx, id)
}

// EntryImage returns the encoded image bytes of entry id, decompressing
// archived units on demand.
func (d *Daemon) EntryImage(ctx context.Context, id string) (*entries.Entry, []byte, error) {
	entry, err := d.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := archive.Open(d.settings.Current(), *entry)
	if err != nil {
		return entry, nil, services.Wrap(services.ErrNotFound, "daemon", "entry image", "image unavailable", err)
	}
	return entry, data, nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	cfg := d.settings.Current()
	last, lastRun := d.archiver.Last()
	status := Status{
		Running: d.running.Load(),
		PID:     os.Getpid(),
		Capture: d.scheduler.Stats(),
		Archive: ArchiveStatus{
			Enabled: cfg.Archive.Enabled,
			Running: d.archiver.Running(),
			LastRun: lastRun,
			Last:    last,
		},
		Displays:     d.detector.Displays(),
		Hotplug:      d.hotplug.Running(),
		Dependencies: deps.CheckBinaries(deps.Requirements(cfg)),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
	}
	stats, err := d.store.Stats(ctx)
	if err != nil {
		status.EntriesError = err.Error()
	} else {
		status.Entries = stats
	}
	return status
}
