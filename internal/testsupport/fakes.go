package testsupport

import (
	"context"
	"image"
	"sync"

	"glimpse/internal/capture"
)

// Capturer is a scriptable capture.Capturer. Frames are served per display
// index from a queue; the last frame repeats once the queue drains.
type Capturer struct {
	mu       sync.Mutex
	displays []capture.Display
	frames   map[int][]*image.RGBA
	errs     map[int]error
	calls    int
}

// NewCapturer returns a Capturer with count displays of the given size.
func NewCapturer(count, w, h int) *Capturer {
	c := &Capturer{frames: map[int][]*image.RGBA{}, errs: map[int]error{}}
	c.SetDisplayCount(count, w, h)
	return c
}

// SetDisplayCount replaces the display enumeration.
func (c *Capturer) SetDisplayCount(count, w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displays = c.displays[:0]
	for i := 0; i < count; i++ {
		c.displays = append(c.displays, capture.Display{Index: i, Bounds: image.Rect(i*w, 0, (i+1)*w, h)})
	}
}

// Queue appends frames to be returned for display.
func (c *Capturer) Queue(display int, frames ...*image.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames[display] = append(c.frames[display], frames...)
}

// Fail makes captures of display return err until cleared with a nil err.
func (c *Capturer) Fail(display int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.errs, display)
		return
	}
	c.errs[display] = err
}

// Calls returns the number of CaptureDisplay invocations.
func (c *Capturer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *Capturer) Displays() []capture.Display {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capture.Display(nil), c.displays...)
}

func (c *Capturer) CaptureDisplay(_ context.Context, d capture.Display) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if err := c.errs[d.Index]; err != nil {
		return nil, err
	}
	queue := c.frames[d.Index]
	switch len(queue) {
	case 0:
		return nil, nil
	case 1:
		return Clone(queue[0]), nil
	default:
		c.frames[d.Index] = queue[1:]
		return Clone(queue[0]), nil
	}
}

// TextExtractor returns fixed text or a fixed error.
type TextExtractor struct {
	Text string
	Err  error
}

func (f TextExtractor) ExtractText(context.Context, image.Image) (string, error) {
	return f.Text, f.Err
}

// Embedder returns a fixed vector or a fixed error and records its inputs.
type Embedder struct {
	mu     sync.Mutex
	Vector []float32
	Err    error
	inputs []string
}

func (f *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]float32(nil), f.Vector...), nil
}

// Inputs returns the texts passed to Embed.
func (f *Embedder) Inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}
