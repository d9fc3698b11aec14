package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"glimpse/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Collaborators are disabled and the API binds an ephemeral port.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScreenshotsDir = filepath.Join(base, "screenshots")
	cfgVal.Paths.ArchiveDir = filepath.Join(base, "archive")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.OCR.Enabled = false
	cfgVal.Embedding.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithImageFormat sets the screenshot encoding.
func WithImageFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.ImageFormat = format
	}
}

// WithMaxSize overrides the downscale bounds.
func WithMaxSize(width, height int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.MaxWidth = width
		b.cfg.Capture.MaxHeight = height
	}
}

// WithColdAgeDays overrides the archive cold age.
func WithColdAgeDays(days int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archive.ColdAgeDays = days
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default glimpse external
// binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"xprintidle", "xdotool", "tesseract"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScreenshotsDir)
}
