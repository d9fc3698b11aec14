// Package activity reports user idle time and the frontmost window so the
// scheduler can suppress idle and self-view cycles and the enrichment path
// can derive titles.
package activity

import (
	"context"
	"time"
)

// Window describes the frontmost application window.
type Window struct {
	AppName string
	Title   string
	// URL is the page address when the frontmost app is a browser and the
	// address could be discovered. Empty otherwise.
	URL string
}

// Provider reports idle time and the frontmost window.
type Provider interface {
	IdleTime(ctx context.Context) (time.Duration, error)
	Frontmost(ctx context.Context) (Window, error)
}

// Static is a Provider returning fixed values. It backs headless sessions and tests.
type Static struct {
	Idle   time.Duration
	Window Window
}

func (s Static) IdleTime(context.Context) (time.Duration, error) { return s.Idle, nil }

func (s Static) Frontmost(context.Context) (Window, error) { return s.Window, nil }
