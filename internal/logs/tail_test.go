package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"glimpse/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glimpse.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")
	cases := []struct {
		limit int
		want  []string
	}{
		{0, []string{}},
		{2, []string{"b", "c"}},
		{3, []string{"a", "b", "c"}},
		{10, []string{"a", "b", "c"}},
	}
	for _, tc := range cases {
		result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: tc.limit})
		if err != nil {
			t.Fatalf("limit %d: tail returned error: %v", tc.limit, err)
		}
		if !slices.Equal(result.Lines, tc.want) {
			t.Fatalf("limit %d: unexpected lines %#v", tc.limit, result.Lines)
		}
		if result.Offset != 6 {
			t.Fatalf("limit %d: expected offset at end of file, got %d", tc.limit, result.Offset)
		}
	}
}

func TestTailResumesFromOffset(t *testing.T) {
	path := writeLog(t, "one\ntwo\n")
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 4})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if !slices.Equal(result.Lines, []string{"two"}) || result.Offset != 8 {
		t.Fatalf("unexpected result %#v", result)
	}

	result, err = logs.Tail(context.Background(), path, logs.TailOptions{Offset: 500})
	if err != nil {
		t.Fatalf("tail past end: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 8 {
		t.Fatalf("expected clamp to end of file, got %#v", result)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.TailResult, 1)
	go func(offset int64) {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		done <- res
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case res := <-done:
		if !slices.Equal(res.Lines, []string{"later"}) {
			t.Fatalf("unexpected follow lines: %#v", res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestTailFollowTimesOutQuietly(t *testing.T) {
	path := writeLog(t, "only\n")
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 5, Follow: true, Wait: 300 * time.Millisecond})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Lines) != 0 || result.Offset != 5 {
		t.Fatalf("unexpected result %#v", result)
	}
}
