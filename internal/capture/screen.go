package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// Screen captures the active displays of the local session.
type Screen struct{}

// NewScreen returns the default screen capture provider.
func NewScreen() *Screen {
	return &Screen{}
}

func (*Screen) Displays() []Display {
	n := screenshot.NumActiveDisplays()
	displays := make([]Display, 0, n)
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		if bounds.Empty() {
			continue
		}
		displays = append(displays, Display{Index: i, Bounds: bounds})
	}
	return displays
}

func (*Screen) CaptureDisplay(ctx context.Context, d Display) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(d.Bounds)
	if err != nil {
		return nil, fmt.Errorf("capture rect %v: %w", d.Bounds, err)
	}
	return img, nil
}
