package activity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const commandTimeout = 2 * time.Second

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, binary string, args ...string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", binary, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return out, nil
}

// X11 queries an X session through xprintidle and xdotool.
type X11 struct {
	idleCommand   string
	windowCommand string
	procRoot      string
	exec          Executor
}

// Option configures the X11 provider.
type Option func(*X11)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(e Executor) Option {
	return func(x *X11) {
		if e != nil {
			x.exec = e
		}
	}
}

// WithProcRoot overrides /proc, used to resolve window PIDs to program names.
func WithProcRoot(root string) Option {
	return func(x *X11) {
		if root != "" {
			x.procRoot = root
		}
	}
}

// NewX11 constructs the provider. Empty commands fall back to xprintidle and xdotool.
func NewX11(idleCommand, windowCommand string, opts ...Option) *X11 {
	x := &X11{
		idleCommand:   strings.TrimSpace(idleCommand),
		windowCommand: strings.TrimSpace(windowCommand),
		procRoot:      "/proc",
		exec:          commandExecutor{},
	}
	if x.idleCommand == "" {
		x.idleCommand = "xprintidle"
	}
	if x.windowCommand == "" {
		x.windowCommand = "xdotool"
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// IdleTime returns the time since the last input event.
func (x *X11) IdleTime(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	out, err := x.exec.Output(ctx, x.idleCommand)
	if err != nil {
		return 0, err
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse idle time %q: %w", strings.TrimSpace(string(out)), err)
	}
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Frontmost returns the active window's program name, title and, when the
// title embeds one, the page URL.
func (x *X11) Frontmost(ctx context.Context) (Window, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	titleOut, err := x.exec.Output(ctx, x.windowCommand, "getactivewindow", "getwindowname")
	if err != nil {
		return Window{}, err
	}
	win := Window{Title: strings.TrimSpace(string(titleOut))}

	pidOut, err := x.exec.Output(ctx, x.windowCommand, "getactivewindow", "getwindowpid")
	if err == nil {
		if pid, convErr := strconv.Atoi(strings.TrimSpace(string(pidOut))); convErr == nil && pid > 0 {
			win.AppName = x.programName(pid)
		}
	}
	win.URL = urlFromTitle(win.Title)
	return win, nil
}

func (x *X11) programName(pid int) string {
	data, err := os.ReadFile(filepath.Join(x.procRoot, strconv.Itoa(pid), "comm"))
	if err != nil {
		return ""
	}
	return DisplayName(strings.TrimSpace(string(data)))
}

var programDisplayNames = map[string]string{
	"chrome":          "Google Chrome",
	"google-chrome":   "Google Chrome",
	"chromium":        "Chromium",
	"chromium-browse": "Chromium",
	"firefox":         "Firefox",
	"firefox-bin":     "Firefox",
	"firefox-esr":     "Firefox",
	"brave":           "Brave Browser",
	"msedge":          "Microsoft Edge",
	"opera":           "Opera",
	"vivaldi-bin":     "Vivaldi",
	"glimpse":         "glimpse",
}

// DisplayName maps a process name to the application name users recognize.
// Unknown names are returned unchanged.
func DisplayName(program string) string {
	if name, ok := programDisplayNames[strings.ToLower(program)]; ok {
		return name
	}
	return program
}

// urlFromTitle picks the last http(s) token of a window title, which is where
// URL-in-title browser extensions place it.
func urlFromTitle(title string) string {
	fields := strings.Fields(title)
	for i := len(fields) - 1; i >= 0; i-- {
		f := strings.Trim(fields[i], "()[]<>")
		if strings.HasPrefix(f, "https://") || strings.HasPrefix(f, "http://") {
			return f
		}
	}
	return ""
}
