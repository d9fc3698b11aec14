package daemonctl

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"glimpse/internal/testsupport"
)

func TestLaunchArgs(t *testing.T) {
	cases := []struct {
		name string
		opts LaunchOptions
		want []string
	}{
		{"defaults", LaunchOptions{}, []string{"daemon", "run"}},
		{"config", LaunchOptions{ConfigPath: " /etc/glimpse.toml "}, []string{"daemon", "run", "--config", "/etc/glimpse.toml"}},
		{"all", LaunchOptions{ConfigPath: "c.toml", LogLevel: "debug", Development: true},
			[]string{"daemon", "run", "--config", "c.toml", "--log-level", "debug", "--dev"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := launchArgs(tc.opts); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("launchArgs = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write pid: %v", err)
		}
		return path
	}

	if pid, err := ReadPID(filepath.Join(dir, "missing.pid")); err != nil || pid != 0 {
		t.Fatalf("missing file = %d, %v", pid, err)
	}
	if pid, err := ReadPID(write("ok.pid", "4242\n")); err != nil || pid != 4242 {
		t.Fatalf("valid file = %d, %v", pid, err)
	}
	if pid, err := ReadPID(write("empty.pid", "  ")); err != nil || pid != 0 {
		t.Fatalf("empty file = %d, %v", pid, err)
	}
	if _, err := ReadPID(write("bad.pid", "abc")); err == nil {
		t.Fatal("expected invalid pid to fail")
	}
	if _, err := ReadPID(write("neg.pid", "-3")); err == nil {
		t.Fatal("expected negative pid to fail")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := StopAndTerminate(cfg, cfg.SocketPath(), time.Second)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestWaitForShutdownMissingSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "none.sock")
	if err := WaitForShutdown(socket, time.Second); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
}

func TestForceKillRefusesCurrentProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := ForceKillProcess(cfg, 0); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if _, err := os.Stat(cfg.PIDPath()); err != nil {
		t.Fatalf("pid file should survive a refused kill: %v", err)
	}
}

func TestForceKillWithoutPID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := ForceKillProcess(cfg, 0); err == nil {
		t.Fatal("expected missing pid to fail")
	}
}

func TestLaunchRunsExecutableDetached(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	script := filepath.Join(dir, "fake-glimpse")
	content := "#!/bin/sh\necho \"$@\" > " + argsFile + "\n"
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	if err := Launch(script, LaunchOptions{ConfigPath: "/tmp/glimpse.toml"}); err != nil {
		t.Fatalf("Launch: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(argsFile)
		if err == nil && len(data) > 0 {
			if got := strings.TrimSpace(string(data)); got != "daemon run --config /tmp/glimpse.toml" {
				t.Fatalf("unexpected launch args %q", got)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("launched process never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := Launch("  ", LaunchOptions{}); err == nil {
		t.Fatal("expected empty executable to fail")
	}
}

func TestEnsureStartedTimesOutWhenDaemonNeverListens(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "noop")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	_, err := EnsureStarted(filepath.Join(dir, "never.sock"), script, LaunchOptions{}, 300*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "daemon failed to start") {
		t.Fatalf("expected start timeout, got %v", err)
	}
}
