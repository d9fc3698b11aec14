package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"glimpse/internal/activity"
	"glimpse/internal/capture"
	"glimpse/internal/config"
	"glimpse/internal/detector"
	"glimpse/internal/entries"
	"glimpse/internal/imaging"
	"glimpse/internal/logging"
	"glimpse/internal/services"
)

// Trigger values recorded on cycle logs.
const (
	TriggerPeriodic = "periodic"
	TriggerAdhoc    = "adhoc"
)

// Enricher persists an accepted frame.
type Enricher interface {
	Process(ctx context.Context, frame imaging.Frame, win activity.Window) (*entries.Entry, error)
}

// Dependencies are the collaborators of a Scheduler.
type Dependencies struct {
	Capturer capture.Capturer
	Activity activity.Provider
	Detector *detector.Detector
	Enricher Enricher
	Settings config.Provider
	Logger   *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Stats summarizes scheduler activity since construction.
type Stats struct {
	Running         bool      `json:"running"`
	Enabled         bool      `json:"enabled"`
	CyclesRun       int       `json:"cycles_run"`
	CyclesSkipped   int       `json:"cycles_skipped"`
	FramesAccepted  int       `json:"frames_accepted"`
	FramesRejected  int       `json:"frames_rejected"`
	EntriesStored   int       `json:"entries_stored"`
	CaptureFailures int       `json:"capture_failures"`
	LastCycle       time.Time `json:"last_cycle,omitempty"`
	LastSkipReason  string    `json:"last_skip_reason,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}

// Scheduler drives periodic capture cycles.
type Scheduler struct {
	capturer capture.Capturer
	activity activity.Provider
	detector *detector.Detector
	enricher Enricher
	settings config.Provider
	logger   *slog.Logger
	clock    func() time.Time

	mu      sync.RWMutex
	running bool
	enabled bool
	cancel  context.CancelFunc
	stats   Stats
	wg      sync.WaitGroup
}

// New constructs a Scheduler. Capture starts enabled.
func New(deps Dependencies) *Scheduler {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		capturer: deps.Capturer,
		activity: deps.Activity,
		detector: deps.Detector,
		enricher: deps.Enricher,
		settings: deps.Settings,
		logger:   logging.NewComponentLogger(deps.Logger, "scheduler"),
		clock:    clock,
		enabled:  true,
	}
}

// DetectorThresholds maps the detector settings onto detector.Thresholds.
func DetectorThresholds(cfg *config.Config) detector.Thresholds {
	return detector.Thresholds{
		Similarity: cfg.Detector.SimilarityThreshold,
		Hamming:    cfg.Detector.HammingThreshold,
		Window:     cfg.Detector.WindowSize,
		Stride:     cfg.Detector.Stride,
	}
}

// Start launches the cycle goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	changes := s.settings.Subscribe()
	go s.loop(runCtx, changes)
	s.logger.Info("capture scheduler started",
		logging.Duration("interval", s.settings.Current().CaptureInterval()),
		logging.Bool("enabled", s.Enabled()),
	)
	return nil
}

// Stop cancels the cycle goroutine and waits for it to exit. An in-flight
// cycle is abandoned without committing baselines.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("capture scheduler stopped")
}

// Pause suspends periodic cycles. A cycle already in flight finishes; the
// next fire sees the flag.
func (s *Scheduler) Pause() { s.setEnabled(false) }

// Resume re-enables periodic cycles.
func (s *Scheduler) Resume() { s.setEnabled(true) }

// Enabled reports whether periodic capture is enabled.
func (s *Scheduler) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Running reports whether the cycle goroutine is active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.stats
	out.Running = s.running
	out.Enabled = s.enabled
	return out
}

func (s *Scheduler) setEnabled(enable bool) {
	s.mu.Lock()
	changed := s.enabled != enable
	s.enabled = enable
	s.mu.Unlock()
	if !changed {
		return
	}
	if enable {
		s.logger.Info("periodic capture resumed")
	} else {
		s.logger.Info("periodic capture paused")
	}
}

func (s *Scheduler) loop(ctx context.Context, changes <-chan struct{}) {
	defer s.wg.Done()

	timer := time.NewTimer(s.settings.Current().CaptureInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			s.applySettings()
		case <-timer.C:
			s.RunCycle(ctx)
			timer.Reset(s.settings.Current().CaptureInterval())
		}
	}
}

// applySettings pushes changed detector thresholds into the detector. New
// thresholds invalidate the baselines so the next cycle reseeds.
func (s *Scheduler) applySettings() {
	next := DetectorThresholds(s.settings.Current())
	if next == s.detector.Thresholds() {
		return
	}
	s.detector.SetThresholds(next)
	s.detector.Invalidate()
	s.logger.Info("detector thresholds updated",
		logging.Float64("similarity_threshold", next.Similarity),
		logging.Int("hamming_threshold", next.Hamming),
	)
}

// CycleReport describes one periodic cycle.
type CycleReport struct {
	Skipped      bool
	SkipReason   string
	SelfView     bool
	Reconfigured bool
	Captured     int
	Failed       int
	Accepted     int
	Rejected     int
	Stored       int
	Err          error
}

// RunCycle runs a single periodic cycle with the same preconditions as the
// timer-driven loop. It is exported for tests and diagnostics.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	cfg := s.settings.Current()
	if !s.Enabled() {
		return s.skip("paused")
	}
	if idle, err := s.activity.IdleTime(ctx); err != nil {
		s.logger.Debug("idle probe failed; assuming active", logging.Error(err))
	} else if idle >= cfg.IdleThreshold() {
		return s.skip("idle")
	}

	ctx = services.WithTrigger(services.WithCycleID(ctx, uuid.NewString()), TriggerPeriodic)
	logger := logging.WithContext(ctx, s.logger)
	now := s.clock()

	win := s.frontmost(ctx, logger)
	results := capture.All(ctx, s.capturer, now)
	report := CycleReport{}
	for _, r := range results {
		if r.OK() {
			report.Captured++
			continue
		}
		report.Failed++
		if !errors.Is(r.Err, context.Canceled) {
			logging.WarnWithContext(logger, "display capture failed", "capture_failed",
				logging.Int(logging.FieldDisplay, r.Display),
				logging.Error(r.Err),
				logging.String(logging.FieldErrorHint, "check screen recording access and the display session"),
				logging.String(logging.FieldImpact, "no frame stored for this display this cycle"),
			)
		}
	}
	if ctx.Err() != nil {
		return CycleReport{Err: ctx.Err()}
	}

	if isSelfView(win.AppName, cfg.Capture.SelfAppNames) {
		s.detector.Seed(results)
		report.SelfView = true
		logger.Debug("self view; baselines reseeded", logging.String("app", win.AppName))
		s.record(report, now)
		return report
	}

	pending, err := s.detector.Plan(ctx, results)
	if err != nil {
		return CycleReport{Err: err}
	}
	report.Reconfigured = pending.Reconfigured()
	if report.Reconfigured {
		logger.Info("display configuration changed; baselines reseeded",
			logging.Int("displays", len(results)),
		)
	}

	aborted := false
	for _, dec := range pending.Decisions() {
		if dec.Reason == detector.ReasonCaptureFailed {
			continue
		}
		if !dec.Accept {
			report.Rejected++
			if dec.Reason == detector.ReasonDuplicate {
				attrs := append(logging.DecisionAttrs("frame_gate", "reject", string(dec.Reason)),
					logging.Int(logging.FieldDisplay, dec.Display),
					logging.Int("distance", dec.Distance),
					logging.Float64("similarity", dec.Similarity),
				)
				logger.Debug("frame unchanged", logging.Args(attrs...)...)
			}
			continue
		}
		report.Accepted++
		if aborted {
			pending.Discard(dec.Display)
			continue
		}
		entry, err := s.enricher.Process(services.WithDisplay(ctx, dec.Display), dec.Frame, win)
		if err != nil {
			pending.Discard(dec.Display)
			report.Err = err
			class := services.Classify(err)
			logging.WarnWithContext(logger, "failed to store accepted frame", "entry_store_failed",
				logging.Int(logging.FieldDisplay, dec.Display),
				logging.Error(err),
				logging.String(logging.FieldErrorClass, class),
				logging.String(logging.FieldErrorHint, "check screenshots_dir permissions and free space"),
				logging.String(logging.FieldImpact, "frame dropped; baseline kept so the change is retried next cycle"),
			)
			if class == services.ClassResourceUnavailable || ctx.Err() != nil {
				aborted = true
			}
			continue
		}
		if entry != nil {
			report.Stored++
		}
	}

	if ctx.Err() != nil {
		return CycleReport{Err: ctx.Err()}
	}
	if !s.detector.Commit(pending) {
		logger.Debug("baselines changed during cycle; plan dropped")
	}
	s.record(report, now)
	return report
}

func (s *Scheduler) frontmost(ctx context.Context, logger *slog.Logger) activity.Window {
	win, err := s.activity.Frontmost(ctx)
	if err != nil {
		logger.Debug("frontmost window probe failed", logging.Error(err))
		return activity.Window{}
	}
	return win
}

func (s *Scheduler) skip(reason string) CycleReport {
	s.mu.Lock()
	s.stats.CyclesSkipped++
	s.stats.LastSkipReason = reason
	s.mu.Unlock()
	return CycleReport{Skipped: true, SkipReason: reason}
}

func (s *Scheduler) record(report CycleReport, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.CyclesRun++
	s.stats.FramesAccepted += report.Accepted
	s.stats.FramesRejected += report.Rejected
	s.stats.EntriesStored += report.Stored
	s.stats.CaptureFailures += report.Failed
	s.stats.LastCycle = at
	if report.Err != nil {
		s.stats.LastError = report.Err.Error()
	} else {
		s.stats.LastError = ""
	}
}

// CaptureNow stores every display immediately. It ignores pause, idle,
// self view and the detector, and never touches baselines. It reports true
// when at least one display was captured and every capture was saved.
func (s *Scheduler) CaptureNow(ctx context.Context) (bool, error) {
	ctx = services.WithTrigger(services.WithCycleID(ctx, uuid.NewString()), TriggerAdhoc)
	logger := logging.WithContext(ctx, s.logger)
	now := s.clock()
	win := s.frontmost(ctx, logger)

	captured := 0
	var firstErr error
	for _, r := range capture.All(ctx, s.capturer, now) {
		if !r.OK() {
			logger.Debug("ad-hoc capture failed for display", logging.Int(logging.FieldDisplay, r.Display), logging.Error(r.Err))
			continue
		}
		captured++
		entry, err := s.enricher.Process(services.WithDisplay(ctx, r.Display), r.Frame, win)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			logging.WarnWithContext(logger, "ad-hoc capture not saved", "adhoc_store_failed",
				logging.Int(logging.FieldDisplay, r.Display),
				logging.Error(err),
				logging.String(logging.FieldErrorClass, services.Classify(err)),
			)
			continue
		}
		if entry != nil {
			s.mu.Lock()
			s.stats.EntriesStored++
			s.mu.Unlock()
		}
	}
	if captured == 0 {
		return false, capture.ErrNoImage
	}
	return firstErr == nil, firstErr
}

func isSelfView(app string, selfNames []string) bool {
	app = strings.TrimSpace(app)
	if app == "" {
		return false
	}
	for _, name := range selfNames {
		if strings.EqualFold(app, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
