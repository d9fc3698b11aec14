// Package daemon coordinates the long-running glimpse process and its system
// integration points.
//
// It wires the settings provider, the entry store, the capture scheduler and
// the archiver into a single lifecycle with flock-based locking to prevent
// multiple instances. A udev netlink monitor drops detector baselines when the
// DRM subsystem reports a display change, and an optional chi HTTP server
// exposes status, entries and entry images read-only.
//
// Keep orchestration here: capture, enrichment and archiving live in their
// own packages while the daemon focuses on startup, shutdown and high level
// coordination.
package daemon
