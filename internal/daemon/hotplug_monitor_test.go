package daemon

import (
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestHotplugMonitorNilSafety(t *testing.T) {
	var m *hotplugMonitor
	if m.Running() {
		t.Error("expected Running() to return false for nil monitor")
	}
	m.Stop()
	if err := m.Start(t.Context()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got: %v", err)
	}
}

func TestHotplugMonitorStopUnstarted(t *testing.T) {
	m := newHotplugMonitor(nil, nil)
	m.Stop()
	m.Stop()
	if m.Running() {
		t.Error("expected Running() to return false after Stop on unstarted monitor")
	}
}

func TestBuildDRMMatcher(t *testing.T) {
	matcher := buildDRMMatcher()

	cases := []struct {
		name   string
		action netlink.KObjAction
		env    map[string]string
		want   bool
	}{
		{"connector change", netlink.CHANGE, map[string]string{"SUBSYSTEM": "drm", "HOTPLUG": "1"}, true},
		{"card added", netlink.ADD, map[string]string{"SUBSYSTEM": "drm"}, true},
		{"card removed", netlink.REMOVE, map[string]string{"SUBSYSTEM": "drm"}, true},
		{"block device", netlink.CHANGE, map[string]string{"SUBSYSTEM": "block"}, false},
		{"drm move", netlink.MOVE, map[string]string{"SUBSYSTEM": "drm"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := matcher.Evaluate(netlink.UEvent{Action: tc.action, Env: tc.env})
			if got != tc.want {
				t.Fatalf("Evaluate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHandleEventInvokesCallback(t *testing.T) {
	var calls int
	m := newHotplugMonitor(nil, func() { calls++ })
	event := netlink.UEvent{
		Action: netlink.CHANGE,
		Env:    map[string]string{"SUBSYSTEM": "drm", "DEVNAME": "/dev/dri/card0", "HOTPLUG": "1"},
	}
	m.handleEvent(event)
	m.handleEvent(event)
	if calls != 2 {
		t.Fatalf("expected 2 callbacks, got %d", calls)
	}
}
