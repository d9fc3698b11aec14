package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"glimpse/internal/activity"
	"glimpse/internal/archive"
	"glimpse/internal/config"
	"glimpse/internal/detector"
	"glimpse/internal/enrich"
	"glimpse/internal/entries"
	"glimpse/internal/scheduler"
	"glimpse/internal/testsupport"
)

func newTestAPI(t *testing.T, token string) (*apiServer, *entries.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = token
	settings := config.NewStatic(cfg)
	store := testsupport.MustOpenStore(t, cfg)
	det := detector.New(scheduler.DetectorThresholds(cfg))
	d, err := New(Dependencies{
		Settings: settings,
		Store:    store,
		Scheduler: scheduler.New(scheduler.Dependencies{
			Capturer: testsupport.NewCapturer(1, 8, 8),
			Activity: activity.Static{},
			Detector: det,
			Enricher: enrich.New(settings, store, nil, nil, nil),
			Settings: settings,
		}),
		Archiver: archive.New(settings, store, nil),
		Detector: det,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.api == nil {
		t.Fatal("expected api server for configured bind")
	}
	return d.api, store, cfg
}

func serve(t *testing.T, srv *apiServer, token, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	return w
}

func TestAPIListsEntriesNewestFirst(t *testing.T) {
	srv, store, _ := newTestAPI(t, "")
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range 3 {
		testsupport.InsertEntry(t, store, base.Add(time.Duration(i)*time.Minute), "shot"+string(rune('a'+i))+".jpg")
	}

	w := serve(t, srv, "", "/api/entries?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp EntryListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Entries))
	}
	if resp.Entries[0].Filename != "shotc.jpg" {
		t.Fatalf("expected newest entry first, got %q", resp.Entries[0].Filename)
	}

	w = serve(t, srv, "", "/api/entries?since="+base.Add(90*time.Second).Format(time.RFC3339))
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected 1 entry since cutoff, got %d", len(resp.Entries))
	}
}

func TestAPIRejectsBadParameters(t *testing.T) {
	srv, _, _ := newTestAPI(t, "")
	for _, target := range []string{"/api/entries?limit=abc", "/api/entries?limit=0", "/api/entries?since=yesterday"} {
		if w := serve(t, srv, "", target); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestAPIEntryAndImage(t *testing.T) {
	srv, store, cfg := newTestAPI(t, "")
	entry := testsupport.InsertEntry(t, store, time.Now(), "frame.png")

	w := serve(t, srv, "", "/api/entries/"+entry.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var got entries.Entry
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if got.ID != entry.ID {
		t.Fatalf("unexpected entry id %q", got.ID)
	}

	if w := serve(t, srv, "", "/api/entries/"+entry.ID+"/image"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before the file exists, got %d", w.Code)
	}

	png := []byte("\x89PNG\r\n\x1a\n0000")
	if err := os.MkdirAll(cfg.Paths.ScreenshotsDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Paths.ScreenshotsDir, "frame.png"), png, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	w = serve(t, srv, "", "/api/entries/"+entry.ID+"/image")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if w.Body.String() != string(png) {
		t.Fatal("unexpected image body")
	}

	if w := serve(t, srv, "", "/api/entries/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	srv, _, _ := newTestAPI(t, "s3cret")

	if w := serve(t, srv, "", "/api/status"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(t, srv, "wrong", "/api/status"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := serve(t, srv, "s3cret", "/api/status"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestAPIDisabledWithoutBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	srv, err := newAPIServer(cfg, &Daemon{}, nil)
	if err != nil || srv != nil {
		t.Fatalf("expected disabled api, got %v, %v", srv, err)
	}
	if err := srv.start(context.Background()); err != nil {
		t.Fatalf("start on nil server: %v", err)
	}
	srv.stop()
}

func TestAPIRejectsInvalidBind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = "not-a-host-port"
	if _, err := newAPIServer(cfg, &Daemon{}, nil); err == nil {
		t.Fatal("expected invalid bind to fail")
	}
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("1700000000")
	if err != nil || !got.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unix seconds: %v, %v", got, err)
	}
	got, err = parseSince("2026-03-01T09:00:00Z")
	if err != nil || !got.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("rfc3339: %v, %v", got, err)
	}
}
