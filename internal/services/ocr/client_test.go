package ocr_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"glimpse/internal/services"
	"glimpse/internal/services/ocr"
)

type recordingExecutor struct {
	binary string
	args   []string
	stdin  []byte
	out    string
	err    error
}

func (r *recordingExecutor) Run(_ context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	r.binary = binary
	r.args = args
	r.stdin = stdin
	return []byte(r.out), r.err
}

func sample() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func TestExtractTextPipesPNG(t *testing.T) {
	exec := &recordingExecutor{out: "  Invoice   2026 \n\n Total: 42 \n"}
	client, err := ocr.New("tesseract", []string{"eng", "deu"}, 5, ocr.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := client.ExtractText(context.Background(), sample())
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "Invoice 2026\nTotal: 42" {
		t.Fatalf("unexpected text %q", text)
	}
	if got := strings.Join(exec.args, " "); got != "stdin stdout -l eng+deu" {
		t.Fatalf("unexpected args %q", got)
	}
	if _, err := png.Decode(bytes.NewReader(exec.stdin)); err != nil {
		t.Fatalf("stdin should be a PNG: %v", err)
	}
}

func TestExtractTextWrapsFailures(t *testing.T) {
	exec := &recordingExecutor{err: errors.New("exit status 1")}
	client, err := ocr.New("tesseract", nil, 5, ocr.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := client.ExtractText(context.Background(), sample()); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, err := client.ExtractText(context.Background(), image.NewRGBA(image.Rectangle{})); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty image, got %v", err)
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := ocr.New("  ", nil, 1); err == nil {
		t.Fatal("expected error for blank binary")
	}
}

func TestCommandExecutorRunsStub(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "tesseract")
	script := "#!/bin/sh\ncat >/dev/null\necho recognized text\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	client, err := ocr.New(stub, []string{"eng"}, 5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := client.ExtractText(context.Background(), sample())
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "recognized text" {
		t.Fatalf("unexpected text %q", text)
	}
}
