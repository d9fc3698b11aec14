// Command glimpse is the command-line client for the glimpse daemon.
//
// Most subcommands talk to a running daemon over its JSON-RPC unix socket:
// status, pause, resume, capture, entries, search, show, export, logs and
// archive run. `glimpse daemon run` hosts the daemon in the foreground, and
// `glimpse archive run --local` compresses cold screenshots in-process when
// no daemon is running.
package main
