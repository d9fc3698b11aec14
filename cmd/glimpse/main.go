package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Exit codes. Scripts polling the daemon can tell "not running" apart from
// command failures.
const (
	exitFailure           = 1
	exitDaemonUnavailable = 3
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "glimpse:", err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, errDaemonUnavailable) {
		return exitDaemonUnavailable
	}
	return exitFailure
}
