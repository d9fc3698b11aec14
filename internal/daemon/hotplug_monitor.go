package daemon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"glimpse/internal/logging"
)

// hotplugMonitor listens for DRM udev events (monitor connected, removed or
// reconfigured) and drops the detector baselines so the next cycle reseeds
// without comparing across a layout change.
type hotplugMonitor struct {
	logger   *slog.Logger
	onChange func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newHotplugMonitor(logger *slog.Logger, onChange func()) *hotplugMonitor {
	return &hotplugMonitor{
		logger:   logging.NewComponentLogger(logger, "hotplug-monitor"),
		onChange: onChange,
	}
}

// Start begins listening for udev netlink events. Connection failures are
// returned but leave the daemon usable.
func (m *hotplugMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return err
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *hotplugMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *hotplugMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *hotplugMonitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildDRMMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "hotplug monitor error", "hotplug_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "display changes are detected on the next capture cycle"),
			)
		}
	}
}

// buildDRMMatcher matches SUBSYSTEM=drm with ACTION=change|add|remove.
func buildDRMMatcher() netlink.Matcher {
	action := "change|add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "drm",
		},
	})
	return rules
}

func (m *hotplugMonitor) handleEvent(uevent netlink.UEvent) {
	m.logger.Info("display layout changed",
		logging.String(logging.FieldEventType, "display_hotplug"),
		logging.String("action", string(uevent.Action)),
		logging.String("device", uevent.Env["DEVNAME"]),
		logging.Bool("hotplug", uevent.Env["HOTPLUG"] == "1"),
	)
	if m.onChange != nil {
		m.onChange()
	}
}
