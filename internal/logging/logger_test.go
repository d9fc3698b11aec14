package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"glimpse/internal/logging"
	"glimpse/internal/services"
)

func TestJSONLoggerWritesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "glimpse.log")

	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("daemon started", logging.String(logging.FieldEventType, "daemon_started"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &payload); err != nil {
		t.Fatalf("decode log line %q: %v", data, err)
	}
	if payload["msg"] != "daemon started" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload[logging.FieldEventType] != "daemon_started" {
		t.Fatalf("unexpected event type: %v", payload[logging.FieldEventType])
	}
}

func TestConsoleLoggerRendersComponentPrefix(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "scheduler")
	logger.Info("cycle complete", logging.Int("accepted", 1), logging.String("reason", "two words"))
	logger.Debug("hidden")
	logger.Info("frame rejected", logging.Int(logging.FieldDisplay, 1))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", lines)
	}
	line := lines[0]
	for _, fragment := range []string{"INFO scheduler: cycle complete", "accepted=1", `reason="two words"`} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should render as prefix only: %q", line)
	}
	if !strings.Contains(lines[1], "INFO scheduler[display 1]: frame rejected") || strings.Contains(lines[1], "display=") {
		t.Fatalf("expected display in prefix: %q", lines[1])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

type captureHandler struct {
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}
func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func recordAttrs(r slog.Record) map[string]string {
	out := map[string]string{}
	r.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	h := &captureHandler{}
	logger := slog.New(h)

	logging.WarnWithContext(logger, "ocr failed", "ocr_failed", logging.String(logging.FieldImpact, "entry stored without text"))

	if len(h.records) != 1 {
		t.Fatalf("expected one record, got %d", len(h.records))
	}
	attrs := recordAttrs(h.records[0])
	if attrs[logging.FieldEventType] != "ocr_failed" {
		t.Fatalf("unexpected event type %q", attrs[logging.FieldEventType])
	}
	if attrs[logging.FieldErrorHint] == "" {
		t.Fatal("expected default error hint")
	}
	if attrs[logging.FieldImpact] != "entry stored without text" {
		t.Fatalf("caller impact should win, got %q", attrs[logging.FieldImpact])
	}
	if h.records[0].Level != slog.LevelWarn {
		t.Fatalf("unexpected level %v", h.records[0].Level)
	}

	logging.WarnWithContext(nil, "ignored", "ignored")
}

func TestContextFields(t *testing.T) {
	ctx := services.WithCycleID(context.Background(), "c-1")
	ctx = services.WithDisplay(ctx, 2)
	ctx = services.WithTrigger(ctx, "periodic")

	fields := logging.ContextFields(ctx)
	got := map[string]string{}
	for _, f := range fields {
		got[f.Key] = f.Value.String()
	}
	if got[logging.FieldCycleID] != "c-1" || got[logging.FieldDisplay] != "2" || got[logging.FieldTrigger] != "periodic" {
		t.Fatalf("unexpected context fields: %v", got)
	}
	if len(logging.ContextFields(context.Background())) != 0 {
		t.Fatal("expected no fields for bare context")
	}
}

func TestPruneRunLogs(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "glimpse-old.log")
	newPath := filepath.Join(dir, "glimpse-new.log")
	activePath := filepath.Join(dir, "glimpse-active.log")
	otherPath := filepath.Join(dir, "notes.txt")
	for _, p := range []string{oldPath, newPath, activePath, otherPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	stale := time.Now().Add(-72 * time.Hour)
	for _, p := range []string{oldPath, activePath, otherPath} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	if removed := logging.PruneRunLogs(logging.NewNop(), dir, "glimpse-*.log", 1, activePath); removed != 1 {
		t.Fatalf("expected 1 pruned log, got %d", removed)
	}
	if removed := logging.PruneRunLogs(nil, dir, "glimpse-*.log", 0, ""); removed != 0 {
		t.Fatalf("zero retention should not prune, got %d", removed)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, p := range []string{newPath, activePath, otherPath} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s to remain: %v", p, err)
		}
	}
}
