// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// Methods are registered under the "Glimpse" service name: Status, Pause,
// Resume, CaptureNow, ArchiveNow, Entries, Search, Entry and LogTail. Reuse
// these request/response types when adding endpoints to keep the protocol
// stable for existing commands.
package ipc
