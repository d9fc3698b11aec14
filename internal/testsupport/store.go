package testsupport

import (
	"context"
	"testing"
	"time"

	"glimpse/internal/config"
	"glimpse/internal/entries"
)

// MustOpenStore opens an entries.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *entries.Store {
	t.Helper()

	store, err := entries.Open(cfg)
	if err != nil {
		t.Fatalf("entries.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// InsertEntry stores a minimal entry captured at ts and returns it.
func InsertEntry(t testing.TB, store *entries.Store, ts time.Time, filename string) *entries.Entry {
	t.Helper()

	entry := &entries.Entry{
		Timestamp: ts,
		AppName:   "Terminal",
		Title:     filename,
		Filename:  filename,
	}
	inserted, err := store.InsertIfAbsent(context.Background(), entry)
	if err != nil {
		t.Fatalf("store.InsertIfAbsent: %v", err)
	}
	if !inserted {
		t.Fatalf("store.InsertIfAbsent: %s already present", filename)
	}
	return entry
}
