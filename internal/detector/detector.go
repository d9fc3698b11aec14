package detector

import (
	"context"
	"image"
	"maps"
	"slices"
	"sync"

	"glimpse/internal/capture"
	"glimpse/internal/fingerprint"
	"glimpse/internal/imaging"
	"glimpse/internal/ssim"
)

// Thresholds configure the dual gate.
type Thresholds struct {
	Similarity float64
	Hamming    int
	Window     int
	Stride     int
}

// DefaultThresholds returns the stock gate settings.
func DefaultThresholds() Thresholds {
	return Thresholds{Similarity: 0.85, Hamming: 7, Window: ssim.DefaultWindow, Stride: ssim.DefaultStride}
}

// Reason explains a Decision.
type Reason string

const (
	ReasonChanged       Reason = "changed"
	ReasonDuplicate     Reason = "duplicate"
	ReasonReconfigured  Reason = "reconfigured"
	ReasonSeeded        Reason = "seeded"
	ReasonCaptureFailed Reason = "capture_failed"
)

// Decision is the keep/discard outcome for one display.
type Decision struct {
	Display    int
	Accept     bool
	Reason     Reason
	Distance   int
	Similarity float64
	Hash       fingerprint.Hash
	Frame      imaging.Frame
	Err        error
}

// Baseline is the last accepted frame of a display, kept as luma.
type Baseline struct {
	Frame *image.Gray
	Hash  fingerprint.Hash
}

// Duplicate reports whether both signals agree the frame is a repeat.
func Duplicate(similarity float64, distance int, th Thresholds) bool {
	return similarity >= th.Similarity && distance <= th.Hamming
}

// Detector holds per-display baselines. It is safe for concurrent use.
//
// The display set of the last reseed is kept apart from the baselines: a
// display that failed to capture while reseeding stays part of the shape and
// is seeded by its next successful frame.
type Detector struct {
	mu         sync.Mutex
	thresholds Thresholds
	baselines  map[int]Baseline
	displays   map[int]struct{}
	generation uint64
}

// New constructs a detector with no baselines.
func New(th Thresholds) *Detector {
	return &Detector{
		thresholds: normalize(th),
		baselines:  make(map[int]Baseline),
		displays:   make(map[int]struct{}),
	}
}

func normalize(th Thresholds) Thresholds {
	def := DefaultThresholds()
	if th.Window <= 0 {
		th.Window = def.Window
	}
	if th.Stride <= 0 {
		th.Stride = def.Stride
	}
	return th
}

// Thresholds returns the active gate settings.
func (d *Detector) Thresholds() Thresholds {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.thresholds
}

// SetThresholds replaces the gate settings; baselines are kept.
func (d *Detector) SetThresholds(th Thresholds) {
	d.mu.Lock()
	d.thresholds = normalize(th)
	d.mu.Unlock()
}

func baselineOf(img image.Image) Baseline {
	return Baseline{Frame: imaging.Gray(img), Hash: fingerprint.Compute(img)}
}

// ShouldAccept gates a single display's frame against its baseline and
// applies the result immediately. It treats frame as a batch of one: a
// display outside the current shape is a configuration change, so every
// baseline is replaced by this frame alone and the frame is rejected.
func (d *Detector) ShouldAccept(display int, frame image.Image) Decision {
	next := baselineOf(frame)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, known := d.displays[display]; !known {
		d.baselines = map[int]Baseline{display: next}
		d.displays = map[int]struct{}{display: {}}
		d.generation++
		return Decision{Display: display, Reason: ReasonReconfigured, Hash: next.Hash}
	}
	base, ok := d.baselines[display]
	if !ok {
		d.baselines[display] = next
		return Decision{Display: display, Reason: ReasonSeeded, Hash: next.Hash}
	}
	dec := compare(display, base, next, d.thresholds)
	if dec.Accept {
		d.baselines[display] = next
	}
	return dec
}

func compare(display int, base, next Baseline, th Thresholds) Decision {
	dist := fingerprint.Distance(next.Hash, base.Hash)
	sim := ssim.Score(next.Frame, base.Frame, th.Window, th.Stride)
	dec := Decision{Display: display, Distance: dist, Similarity: sim, Hash: next.Hash}
	if Duplicate(sim, dist, th) {
		dec.Reason = ReasonDuplicate
		return dec
	}
	dec.Accept = true
	dec.Reason = ReasonChanged
	return dec
}

// Pending is an evaluated cycle whose baseline changes have not been applied.
type Pending struct {
	generation uint64
	reseed     bool
	displays   map[int]struct{}
	updates    map[int]Baseline
	decisions  []Decision
}

// Decisions returns one decision per result of the planned batch, in order.
func (p *Pending) Decisions() []Decision {
	return p.decisions
}

// Reconfigured reports whether the plan reseeds all baselines.
func (p *Pending) Reconfigured() bool {
	return p.reseed
}

// Discard withholds the baseline update of an accepted display so the next
// cycle compares against the previous baseline again. It has no effect on a
// reseed plan.
func (p *Pending) Discard(display int) {
	if p.reseed {
		return
	}
	delete(p.updates, display)
}

// Plan evaluates a capture batch without touching the baselines. If the
// displays in the batch differ from the display set of the last reseed, the
// plan reseeds every baseline from the batch and rejects every frame. A
// display of the current set that still lacks a baseline, because its capture
// failed while reseeding, is seeded from its frame and the frame rejected.
func (d *Detector) Plan(ctx context.Context, batch []capture.Result) (*Pending, error) {
	d.mu.Lock()
	current := maps.Clone(d.baselines)
	shape := maps.Clone(d.displays)
	th := d.thresholds
	gen := d.generation
	d.mu.Unlock()

	p := &Pending{generation: gen, updates: make(map[int]Baseline), decisions: make([]Decision, 0, len(batch))}

	if !sameShape(batch, shape) {
		p.reseed = true
		p.displays = displaySet(batch)
		for _, r := range batch {
			dec := Decision{Display: r.Display, Frame: r.Frame, Reason: ReasonReconfigured, Err: r.Err}
			if r.OK() {
				next := baselineOf(r.Frame.Image)
				p.updates[r.Display] = next
				dec.Hash = next.Hash
			} else {
				dec.Reason = ReasonCaptureFailed
			}
			p.decisions = append(p.decisions, dec)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return p, nil
	}

	for _, r := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.OK() {
			p.decisions = append(p.decisions, Decision{Display: r.Display, Reason: ReasonCaptureFailed, Err: r.Err})
			continue
		}
		next := baselineOf(r.Frame.Image)
		base, ok := current[r.Display]
		if !ok {
			p.updates[r.Display] = next
			p.decisions = append(p.decisions, Decision{Display: r.Display, Reason: ReasonSeeded, Hash: next.Hash, Frame: r.Frame})
			continue
		}
		dec := compare(r.Display, base, next, th)
		dec.Frame = r.Frame
		if dec.Accept {
			p.updates[r.Display] = next
		}
		p.decisions = append(p.decisions, dec)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Commit applies a plan's baseline changes at once. It returns false, and
// changes nothing, when the baselines were invalidated or replaced after the
// plan was made.
func (d *Detector) Commit(p *Pending) bool {
	if p == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.generation != d.generation {
		return false
	}
	if p.reseed {
		d.baselines = maps.Clone(p.updates)
		d.displays = maps.Clone(p.displays)
		d.generation++
		return true
	}
	maps.Copy(d.baselines, p.updates)
	return true
}

// Evaluate plans and commits a batch in one step.
func (d *Detector) Evaluate(ctx context.Context, batch []capture.Result) ([]Decision, error) {
	p, err := d.Plan(ctx, batch)
	if err != nil {
		return nil, err
	}
	d.Commit(p)
	return p.Decisions(), nil
}

// Seed replaces all baselines from the successful frames of batch without
// comparing anything. Every display of batch, failed or not, becomes the
// current display set.
func (d *Detector) Seed(batch []capture.Result) {
	next := make(map[int]Baseline, len(batch))
	for _, r := range capture.Successful(batch) {
		next[r.Display] = baselineOf(r.Frame.Image)
	}
	shape := displaySet(batch)
	d.mu.Lock()
	d.baselines = next
	d.displays = shape
	d.generation++
	d.mu.Unlock()
}

// Invalidate drops every baseline and the display set; the next batch reseeds.
func (d *Detector) Invalidate() {
	d.mu.Lock()
	d.baselines = make(map[int]Baseline)
	d.displays = make(map[int]struct{})
	d.generation++
	d.mu.Unlock()
}

// Snapshot returns a copy of the baseline map.
func (d *Detector) Snapshot() map[int]Baseline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return maps.Clone(d.baselines)
}

// Displays returns the display keys that currently hold a baseline, sorted.
func (d *Detector) Displays() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.baselines))
}

// sameShape reports whether batch enumerates exactly the displays of shape.
func sameShape(batch []capture.Result, shape map[int]struct{}) bool {
	if len(batch) != len(shape) {
		return false
	}
	seen := make(map[int]struct{}, len(batch))
	for _, r := range batch {
		if _, dup := seen[r.Display]; dup {
			return false
		}
		seen[r.Display] = struct{}{}
		if _, ok := shape[r.Display]; !ok {
			return false
		}
	}
	return true
}

func displaySet(batch []capture.Result) map[int]struct{} {
	set := make(map[int]struct{}, len(batch))
	for _, r := range batch {
		set[r.Display] = struct{}{}
	}
	return set
}
