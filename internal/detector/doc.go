// Package detector decides whether a newly captured frame is materially
// different from the last accepted frame of its display.
//
// Two signals gate the decision: the Hamming distance between difference
// hashes and the windowed SSIM score. A frame is dropped as a duplicate only
// when both agree (similarity at or above the threshold and distance at or
// below it); any disagreement keeps the frame.
//
// Baselines are keyed by positional display index. Whenever the set of
// displays in a capture batch differs from the set of baselines, every
// baseline is replaced from the batch and every frame of that cycle is
// rejected without comparison. Plan and Commit split a cycle so callers can
// withhold baseline updates for frames they failed to persist; Evaluate runs
// both steps at once.
package detector
