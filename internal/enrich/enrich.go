package enrich

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"glimpse/internal/activity"
	"glimpse/internal/config"
	"glimpse/internal/entries"
	"glimpse/internal/fileutil"
	"glimpse/internal/fingerprint"
	"glimpse/internal/imaging"
	"glimpse/internal/logging"
	"glimpse/internal/services"
	"glimpse/internal/title"
)

// ErrResourceUnavailable reports that the screenshots directory cannot be
// created or written. The current operation is aborted and retried next tick.
var ErrResourceUnavailable = services.ErrResourceUnavailable

const filenameTimeLayout = "20060102-150405.000"

// TextExtractor runs OCR over an image.
type TextExtractor interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the slice of the entry store the enricher writes to.
type Store interface {
	InsertIfAbsent(ctx context.Context, entry *entries.Entry) (bool, error)
}

// Enricher persists accepted frames as entries.
type Enricher struct {
	settings config.Provider
	store    Store
	ocr      TextExtractor
	embedder Embedder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithClock overrides the wall clock used when a frame carries no capture time.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) {
		if now != nil {
			e.now = now
		}
	}
}

// New constructs an Enricher. ocr and embedder may be nil to disable them.
func New(settings config.Provider, store Store, ocr TextExtractor, embedder Embedder, logger *slog.Logger, opts ...Option) *Enricher {
	e := &Enricher{
		settings: settings,
		store:    store,
		ocr:      ocr,
		embedder: embedder,
		logger:   logging.NewComponentLogger(logger, "enrich"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process stores frame as a new entry attributed to win. A nil entry with a
// nil error means the entry already existed and the written file was removed.
func (e *Enricher) Process(ctx context.Context, frame imaging.Frame, win activity.Window) (*entries.Entry, error) {
	if frame.Empty() {
		return nil, services.Wrap(services.ErrValidation, "enrich", "process", "frame has no image", nil)
	}
	cfg := e.settings.Current()
	logger := logging.WithContext(ctx, e.logger)

	capturedAt := frame.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = e.now()
	}

	dir := strings.TrimSpace(cfg.Paths.ScreenshotsDir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "enrich", "process", "screenshots_dir is empty", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create screenshots dir %s: %w", ErrResourceUnavailable, dir, err)
	}

	scaled := imaging.Fit(frame.Image, cfg.Capture.MaxWidth, cfg.Capture.MaxHeight)
	format, err := imaging.NormalizeFormat(cfg.Capture.ImageFormat)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "enrich", "encode", "invalid image format", err)
	}
	data, err := imaging.EncodeBytes(scaled, format, cfg.Capture.Quality)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	filename := Filename(capturedAt, frame.Display, imaging.Extension(format))
	path := filepath.Join(dir, filename)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write screenshot %s: %w", ErrResourceUnavailable, path, err)
	}

	entry := &entries.Entry{
		Timestamp:   capturedAt,
		AppName:     strings.TrimSpace(win.AppName),
		Filename:    filename,
		Display:     frame.Display,
		Fingerprint: fingerprint.Compute(scaled).String(),
	}
	if pageURL := strings.TrimSpace(win.URL); pageURL != "" {
		entry.PageURL = &pageURL
	}

	text := e.extractText(ctx, logger, scaled)
	if text != "" {
		entry.Text = &text
		entry.Embedding = e.embed(ctx, logger, text)
	}
	entry.Title = title.New(cfg.Capture.BrowserAppNames).Derive(win.AppName, win.Title, win.URL)

	inserted, err := e.store.InsertIfAbsent(ctx, entry)
	if err != nil {
		_ = fileutil.RemoveIfExists(path)
		return nil, fmt.Errorf("store entry: %w", err)
	}
	if !inserted {
		if err := fileutil.RemoveIfExists(path); err != nil {
			logging.WarnWithContext(logger, "failed to remove duplicate screenshot", "duplicate_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "an unreferenced screenshot remains on disk"),
			)
		}
		attrs := append(logging.DecisionAttrs("entry_insert", "skip", "duplicate"), logging.String("filename", filename))
		logger.Debug("entry already present; screenshot discarded", logging.Args(attrs...)...)
		return nil, nil
	}

	logger.Info("entry stored",
		logging.String(logging.FieldEntryID, entry.ID),
		logging.String("filename", filename),
		logging.String("title", entry.Title),
		logging.Bool("has_text", entry.HasText()),
		logging.Int("embedding_dim", len(entry.Embedding)),
	)
	return entry, nil
}

func (e *Enricher) extractText(ctx context.Context, logger *slog.Logger, img image.Image) string {
	if e.ocr == nil {
		return ""
	}
	text, err := e.ocr.ExtractText(ctx, img)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return ""
		}
		logging.WarnWithContext(logger, "ocr failed; entry stored without text", "ocr_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorClass, services.Classify(err)),
			logging.String(logging.FieldErrorHint, "check the ocr binary and languages in the config"),
			logging.String(logging.FieldImpact, "entry is not searchable by screen text"),
		)
		return ""
	}
	return strings.TrimSpace(text)
}

func (e *Enricher) embed(ctx context.Context, logger *slog.Logger, text string) []float32 {
	if e.embedder == nil {
		return nil
	}
	vector, err := e.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		logging.WarnWithContext(logger, "embedding failed; entry stored without vector", "embedding_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorClass, services.Classify(err)),
			logging.String(logging.FieldErrorHint, "check embedding.base_url and embedding.model"),
			logging.String(logging.FieldImpact, "entry has no semantic vector"),
		)
		return nil
	}
	return vector
}

// Filename builds the screenshot name <YYYYMMDD-HHMMSS.mmm>_d<display>_<rand6><ext>.
// The random suffix keeps simultaneous captures from colliding.
func Filename(capturedAt time.Time, display int, ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_d%d_%s%s", capturedAt.Format(filenameTimeLayout), display, suffix, ext)
}
