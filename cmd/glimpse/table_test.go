package main

import (
	"strings"
	"testing"
)

func TestRenderTableTrimsWideColumns(t *testing.T) {
	out := renderTable([]column{
		{Header: "ID"},
		{Header: "Title", MaxWidth: 8},
	}, [][]string{
		{"abc", "a very long window title"},
		{"short"},
	})
	if strings.Contains(out, "a very long window title") {
		t.Fatalf("expected title trimmed, got:\n%s", out)
	}
	if !strings.Contains(out, "a very l") {
		t.Fatalf("expected trimmed prefix, got:\n%s", out)
	}
	if !strings.Contains(out, "short") {
		t.Fatalf("expected short row rendered, got:\n%s", out)
	}
}

func TestRenderTableEmpty(t *testing.T) {
	if out := renderTable(nil, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Capture", statusWarn, "paused", false)
	if !strings.Contains(line, "Capture:") || !strings.Contains(line, "[WARN] paused") {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("Capture", statusOK, "", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected colored line, got %q", colored)
	}
}
