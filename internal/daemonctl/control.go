package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"glimpse/internal/config"
	"glimpse/internal/ipc"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath  string
	LogLevel    string
	Development bool
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State StartState
	PID   int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// launchArgs builds the argument list for `glimpse daemon run`.
func launchArgs(opts LaunchOptions) []string {
	args := []string{"daemon", "run"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}
	if opts.Development {
		args = append(args, "--dev")
	}
	return args
}

// Launch starts a detached glimpse daemon process in its own session.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	proc := exec.Command(executablePath, launchArgs(opts)...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless its socket already answers.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	state := StartStateAlreadyRunning
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		state = StartStateStarted
	}
	defer client.Close()

	result := StartResult{State: state}
	if status, err := client.Status(); err == nil && status != nil {
		result.PID = status.PID
	}
	return result, nil
}

// WaitForShutdown waits until the daemon socket stops answering.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
			time.Sleep(pollInterval)
			continue
		}
		_ = client.Close()
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// ReadPID returns the pid recorded in path, or 0 when the file is missing.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q in %s", raw, path)
	}
	return pid, nil
}

// ForceKillProcess sends SIGKILL to the daemon and removes its pid, lock and
// socket files.
func ForceKillProcess(cfg *config.Config, fallbackPID int) (int, error) {
	pid, err := ReadPID(cfg.PIDPath())
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		pid = fallbackPID
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", cfg.PIDPath())
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	for _, path := range []string{cfg.PIDPath(), cfg.SocketPath()} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return pid, fmt.Errorf("remove %q: %w", path, err)
		}
	}
	return pid, nil
}

// StopAndTerminate sends SIGTERM to the daemon and force-kills it if the
// socket still answers after gracePeriod.
func StopAndTerminate(cfg *config.Config, socketPath string, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	status, statusErr := client.Status()
	_ = client.Close()

	pid := 0
	if statusErr == nil && status != nil {
		pid = status.PID
	}
	if pid == 0 {
		if pid, err = ReadPID(cfg.PIDPath()); err != nil {
			return StopResult{}, err
		}
	}
	if pid <= 0 {
		return StopResult{}, errors.New("unable to determine daemon pid")
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if err := WaitForShutdown(socketPath, gracePeriod); err == nil {
		return result, nil
	}

	killed, err := ForceKillProcess(cfg, pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	result.PID = killed
	result.ForcedKill = true
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(cfg *config.Config, socketPath, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(cfg, socketPath, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
