package archive_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"glimpse/internal/archive"
	"glimpse/internal/config"
	"glimpse/internal/entries"
	"glimpse/internal/imaging"
	"glimpse/internal/testsupport"
)

var fixedNow = time.Date(2026, 7, 15, 12, 0, 0, 0, time.Local)

func clock() time.Time { return fixedNow }

// writeShot stores an encoded screenshot for an entry captured at ts.
func writeShot(t *testing.T, cfg *config.Config, store *entries.Store, ts time.Time, name string) (*entries.Entry, []byte) {
	t.Helper()
	data, err := imaging.EncodeBytes(testsupport.Noise(64, 40, ts.Unix()), imaging.FormatPNG, 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.MkdirAll(cfg.Paths.ScreenshotsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Paths.ScreenshotsDir, name), data, 0o644); err != nil {
		t.Fatalf("write screenshot: %v", err)
	}
	return testsupport.InsertEntry(t, store, ts, name), data
}

func TestArchiveColdEntryRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	oldTS := fixedNow.AddDate(0, 0, -40)
	old, original := writeShot(t, cfg, store, oldTS, "old.png")
	fresh, _ := writeShot(t, cfg, store, fixedNow.AddDate(0, 0, -1), "fresh.png")

	a := archive.New(config.NewStatic(cfg), store, nil, archive.WithClock(clock))
	var calls int
	report, err := a.Trigger(ctx, func(done, total int) { calls++ })
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if report.Scanned != 1 || report.Archived != 1 || report.Failed != 0 || calls != 1 {
		t.Fatalf("unexpected report %+v (progress calls %d)", report, calls)
	}

	got, err := store.GetByID(ctx, old.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	wantRel := filepath.Join(oldTS.Format("2006-01-02"), "old.png.zst")
	if !got.Archived || got.ArchivedFilename != wantRel {
		t.Fatalf("unexpected archival fields %+v", got)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ScreenshotsDir, "old.png")); !os.IsNotExist(err) {
		t.Fatalf("expected loose file removed, stat err %v", err)
	}
	unitPath := filepath.Join(cfg.Paths.ArchiveDir, wantRel)
	unit, err := os.ReadFile(unitPath)
	if err != nil {
		t.Fatalf("read unit: %v", err)
	}
	raw, err := archive.Decode(unit)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(raw, original) {
		t.Fatal("decompressed bytes differ from the original screenshot")
	}

	opened, err := archive.Open(cfg, *got)
	if err != nil || !bytes.Equal(opened, original) {
		t.Fatalf("Open archived: err=%v equal=%v", err, bytes.Equal(opened, original))
	}
	if img, ok := archive.Load(cfg, *got); !ok || img.Bounds().Dx() != 64 {
		t.Fatalf("Load archived: ok=%v", ok)
	}

	freshGot, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID fresh: %v", err)
	}
	if freshGot.Archived {
		t.Fatal("fresh entry must stay loose")
	}
	if _, ok := archive.Load(cfg, *freshGot); !ok {
		t.Fatal("expected loose image to load")
	}
}

func TestArchiverIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	writeShot(t, cfg, store, fixedNow.AddDate(0, 0, -31), "a.png")
	writeShot(t, cfg, store, fixedNow.AddDate(0, 0, -45), "b.png")

	a := archive.New(config.NewStatic(cfg), store, nil, archive.WithClock(clock))
	first, err := a.Trigger(ctx, nil)
	if err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	if first.Archived != 2 {
		t.Fatalf("unexpected first report %+v", first)
	}
	snapshot := listTree(t, cfg.Paths.ArchiveDir)

	second, err := a.Trigger(ctx, nil)
	if err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if second != (archive.Report{}) {
		t.Fatalf("expected second pass to do nothing, got %+v", second)
	}
	if after := listTree(t, cfg.Paths.ArchiveDir); len(after) != len(snapshot) {
		t.Fatalf("archive tree changed: %v -> %v", snapshot, after)
	}
	if last, at := a.Last(); last != second || !at.Equal(fixedNow) {
		t.Fatalf("unexpected last report %+v at %v", last, at)
	}
}

func TestExistingUnitIsMarkedWithoutRewrite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	entry, _ := writeShot(t, cfg, store, fixedNow.AddDate(0, 0, -40), "c.png")

	unitPath := filepath.Join(cfg.Paths.ArchiveDir, archive.UnitName(*entry))
	if err := os.MkdirAll(filepath.Dir(unitPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	sentinel := []byte("existing unit")
	if err := os.WriteFile(unitPath, sentinel, 0o644); err != nil {
		t.Fatalf("write unit: %v", err)
	}

	a := archive.New(config.NewStatic(cfg), store, nil, archive.WithClock(clock))
	report, err := a.Trigger(ctx, nil)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if report.AlreadyPresent != 1 || report.Archived != 0 || report.Marked() != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if data, _ := os.ReadFile(unitPath); !bytes.Equal(data, sentinel) {
		t.Fatal("existing unit must not be rewritten")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ScreenshotsDir, "c.png")); !os.IsNotExist(err) {
		t.Fatal("expected loose file removed")
	}
	got, _ := store.GetByID(ctx, entry.ID)
	if !got.Archived {
		t.Fatal("expected entry marked archived")
	}
	if _, ok := archive.Load(cfg, *got); ok {
		t.Fatal("a corrupt unit must report no image available")
	}
}

func TestMissingLooseFileIsSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	entry := testsupport.InsertEntry(t, store, fixedNow.AddDate(0, 0, -40), "gone.png")

	a := archive.New(config.NewStatic(cfg), store, nil, archive.WithClock(clock))
	report, err := a.Trigger(context.Background(), nil)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if report.Skipped != 1 || report.Marked() != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	got, _ := store.GetByID(context.Background(), entry.ID)
	if got.Archived {
		t.Fatal("skipped entry must stay unarchived")
	}
	if _, ok := archive.Load(cfg, *got); ok {
		t.Fatal("expected no image available")
	}
}

func TestUnwritableArchiveRootAborts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	entry, _ := writeShot(t, cfg, store, fixedNow.AddDate(0, 0, -40), "d.png")

	blocker := filepath.Join(testsupport.BaseDir(cfg), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg.Paths.ArchiveDir = filepath.Join(blocker, "archive")

	a := archive.New(config.NewStatic(cfg), store, nil, archive.WithClock(clock))
	if _, err := a.Trigger(context.Background(), nil); !errors.Is(err, archive.ErrResourceUnavailable) {
		t.Fatalf("expected ErrResourceUnavailable, got %v", err)
	}
	got, _ := store.GetByID(context.Background(), entry.ID)
	if got.Archived {
		t.Fatal("aborted pass must not mark entries")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ScreenshotsDir, "d.png")); err != nil {
		t.Fatalf("loose file must remain: %v", err)
	}
}

type blockingStore struct {
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) ColdEntries(context.Context, time.Time) ([]entries.Entry, error) {
	close(s.entered)
	<-s.release
	return nil, nil
}

func (s *blockingStore) MarkArchived(context.Context, []entries.ArchivalUpdate) error { return nil }

func TestTriggerWhileRunningReturnsAlreadyRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	a := archive.New(config.NewStatic(cfg), store, nil, archive.WithClock(clock))

	done := make(chan error, 1)
	go func() {
		_, err := a.Trigger(context.Background(), nil)
		done <- err
	}()
	<-store.entered
	if !a.Running() {
		t.Fatal("expected running flag set")
	}
	if _, err := a.Trigger(context.Background(), nil); !errors.Is(err, archive.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	if a.Running() {
		t.Fatal("expected running flag cleared")
	}
}

func TestStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	a := archive.New(config.NewStatic(cfg), store, nil)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	a.Stop()
	a.Stop()
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return out
}

type recordingNotifier struct {
	completed []string
	lowSpace  int
	errs      []error
}

func (n *recordingNotifier) NotifyArchiveCompleted(_ context.Context, archived, failed int, _ time.Duration) error {
	n.completed = append(n.completed, fmt.Sprintf("%d/%d", archived, failed))
	return nil
}

func (n *recordingNotifier) NotifyLowDiskSpace(context.Context, string, int64, int64) error {
	n.lowSpace++
	return nil
}

func (n *recordingNotifier) NotifyError(_ context.Context, err error, _ string) error {
	n.errs = append(n.errs, err)
	return nil
}

func TestNotifierReceivesPassOutcomes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Archive.MinFreeMiB = 1 << 30
	store := testsupport.MustOpenStore(t, cfg)
	writeShot(t, cfg, store, fixedNow.AddDate(0, 0, -40), "n.png")

	n := &recordingNotifier{}
	a := archive.New(config.NewStatic(cfg), store, nil, archive.WithClock(clock), archive.WithNotifier(n))
	if _, err := a.Trigger(context.Background(), nil); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if len(n.completed) != 1 || n.completed[0] != "1/0" {
		t.Fatalf("unexpected completion notifications %v", n.completed)
	}
	if n.lowSpace != 1 {
		t.Fatalf("expected low space notification, got %d", n.lowSpace)
	}

	// Nothing left to archive: no completion notification.
	if _, err := a.Trigger(context.Background(), nil); err != nil {
		t.Fatalf("second Trigger: %v", err)
	}
	if len(n.completed) != 1 {
		t.Fatalf("expected no notification for an empty pass, got %v", n.completed)
	}

	blocker := filepath.Join(testsupport.BaseDir(cfg), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	cfg.Paths.ArchiveDir = filepath.Join(blocker, "archive")
	if _, err := a.Trigger(context.Background(), nil); err == nil {
		t.Fatal("expected aborted pass")
	}
	if len(n.errs) != 1 || !errors.Is(n.errs[0], archive.ErrResourceUnavailable) {
		t.Fatalf("unexpected error notifications %v", n.errs)
	}
}
