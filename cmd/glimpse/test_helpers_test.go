package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"glimpse/internal/activity"
	"glimpse/internal/archive"
	"glimpse/internal/config"
	"glimpse/internal/daemon"
	"glimpse/internal/detector"
	"glimpse/internal/enrich"
	"glimpse/internal/entries"
	"glimpse/internal/ipc"
	"glimpse/internal/logging"
	"glimpse/internal/scheduler"
	"glimpse/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *entries.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
	logPath    string
}

// setupCLIConfig writes a config file for a fresh test tree without starting a daemon.
func setupCLIConfig(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Paths.APIBind = ""
	cfg.Capture.IntervalSeconds = 3600
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		logPath:    filepath.Join(cfg.Paths.LogDir, "glimpse.log"),
	}
}

// setupCLITestEnv starts an in-process daemon and IPC server behind the CLI.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	env := setupCLIConfig(t)
	cfg := env.cfg
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(env.logPath, nil, 0o644); err != nil {
		t.Fatalf("create log file: %v", err)
	}

	settings := config.NewStatic(cfg)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	det := detector.New(scheduler.DetectorThresholds(cfg))
	capturer := testsupport.NewCapturer(1, 64, 48)
	capturer.Queue(0, testsupport.Noise(64, 48, 11))

	d, err := daemon.New(daemon.Dependencies{
		Settings: settings,
		Store:    store,
		Scheduler: scheduler.New(scheduler.Dependencies{
			Capturer: capturer,
			Activity: activity.Static{Window: activity.Window{AppName: "Browser", Title: "release notes"}},
			Detector: det,
			Enricher: enrich.New(settings, store, nil, nil, logger),
			Settings: settings,
			Logger:   logger,
		}),
		Archiver: archive.New(settings, store, logger),
		Detector: det,
		Logger:   logger,
		LogPath:  env.logPath,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	env.store = store
	env.daemon = d
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	full := append([]string{"--socket", env.socketPath, "--config", env.configPath}, args...)
	cmd.SetArgs(full)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeScreenshot(t *testing.T, cfg *config.Config, name string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(cfg.Paths.ScreenshotsDir, 0o755); err != nil {
		t.Fatalf("mkdir screenshots: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Paths.ScreenshotsDir, name), data, 0o644); err != nil {
		t.Fatalf("write screenshot: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
