// Package logging assembles structured slog loggers and formatting helpers used
// across glimpse.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so capture and archive code can tag log
// lines with cycle IDs, display indexes and triggers. WarnWithContext and
// ErrorWithContext enforce the event_type/error_hint/impact fields every
// operator-facing warning carries. NewNop is provided for tests and for wiring
// code that cannot fail.
package logging
