// Package scheduler runs the periodic capture cycle.
//
// One goroutine owns the cycle timer. Each tick it checks the pause state and
// the user's idle time, captures every display, hands the batch to the change
// detector and forwards accepted frames to the enricher. Pause and resume are
// messages serviced by that goroutine; CaptureNow bypasses the cycle entirely.
package scheduler
