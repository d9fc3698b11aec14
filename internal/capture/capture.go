// Package capture enumerates displays and grabs one frame per display.
//
// Results are reported through the Result variant so the detector and the
// enrichment path consume successes and per-display failures uniformly.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"glimpse/internal/imaging"
)

// ErrNoImage reports that the capture provider returned nothing for a display.
var ErrNoImage = errors.New("capture returned no image")

// Display is one entry of the current display enumeration. Index is positional
// and only stable for the duration of a cycle.
type Display struct {
	Index  int
	Bounds image.Rectangle
}

// Capturer is the screen capture provider.
type Capturer interface {
	Displays() []Display
	CaptureDisplay(ctx context.Context, d Display) (*image.RGBA, error)
}

// Result is the outcome of capturing one display: either a frame or an error.
type Result struct {
	Display int
	Frame   imaging.Frame
	Err     error
}

// Succeeded builds a successful result.
func Succeeded(frame imaging.Frame) Result {
	return Result{Display: frame.Display, Frame: frame}
}

// Failed builds a failed result for display.
func Failed(display int, err error) Result {
	if err == nil {
		err = ErrNoImage
	}
	return Result{Display: display, Err: err}
}

// OK reports whether the result carries a usable frame.
func (r Result) OK() bool {
	return r.Err == nil && !r.Frame.Empty()
}

// All captures every display in enumeration order. A failure on one display
// never prevents capturing the others.
func All(ctx context.Context, c Capturer, now time.Time) []Result {
	displays := c.Displays()
	results := make([]Result, 0, len(displays))
	for _, d := range displays {
		if err := ctx.Err(); err != nil {
			results = append(results, Failed(d.Index, err))
			continue
		}
		img, err := c.CaptureDisplay(ctx, d)
		switch {
		case err != nil:
			results = append(results, Failed(d.Index, fmt.Errorf("display %d: %w", d.Index, err)))
		case img == nil || img.Bounds().Empty():
			results = append(results, Failed(d.Index, fmt.Errorf("display %d: %w", d.Index, ErrNoImage)))
		default:
			results = append(results, Succeeded(imaging.Frame{Display: d.Index, Image: img, CapturedAt: now}))
		}
	}
	return results
}

// Successful filters results down to usable frames, preserving order.
func Successful(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r)
		}
	}
	return out
}
