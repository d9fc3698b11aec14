// Package ssim scores structural similarity between two equally sized
// grayscale images using tiled local statistics.
package ssim

import (
	"image"
	"math"

	"glimpse/internal/imaging"
)

const (
	dynamicRange = 255.0
	c1           = (0.01 * dynamicRange) * (0.01 * dynamicRange)
	c2           = (0.03 * dynamicRange) * (0.03 * dynamicRange)
)

// Defaults used by the change detector.
const (
	DefaultWindow = 8
	DefaultStride = 4
)

// Score returns the mean windowed SSIM of a and b in [0,1]. Images of
// different or empty size score 0. A window larger than either dimension, or
// a stride that visits no window, falls back to one whole-image window, so any
// two same-sized non-empty images always produce a score.
func Score(a, b *image.Gray, window, stride int) float64 {
	if a == nil || b == nil {
		return 0
	}
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() || ab.Empty() {
		return 0
	}
	w, h := ab.Dx(), ab.Dy()

	if window <= 0 || window > w || window > h {
		return wholeImage(a, b)
	}

	var total float64
	visited := 0
	if stride > 0 {
		for y := 0; y+window <= h; y += stride {
			for x := 0; x+window <= w; x += stride {
				total += clamp(windowScore(a, b, x, y, window, window))
				visited++
			}
		}
	}
	if visited == 0 {
		return wholeImage(a, b)
	}
	return total / float64(visited)
}

// ScoreImages converts a and b to luma and scores them.
func ScoreImages(a, b image.Image, window, stride int) float64 {
	if a == nil || b == nil {
		return 0
	}
	return Score(imaging.Gray(a), imaging.Gray(b), window, stride)
}

func wholeImage(a, b *image.Gray) float64 {
	return clamp(windowScore(a, b, 0, 0, a.Bounds().Dx(), a.Bounds().Dy()))
}

// windowScore computes SSIM over the w×h window whose top-left corner is
// (x,y) relative to each image's bounds. Sums are exact in integers.
func windowScore(a, b *image.Gray, x, y, w, h int) float64 {
	ao, bo := a.Bounds().Min, b.Bounds().Min
	var sa, sb, saa, sbb, sab uint64
	for row := 0; row < h; row++ {
		ai := a.PixOffset(ao.X+x, ao.Y+y+row)
		bi := b.PixOffset(bo.X+x, bo.Y+y+row)
		arow := a.Pix[ai : ai+w]
		brow := b.Pix[bi : bi+w]
		for i := range arow {
			pa, pb := uint64(arow[i]), uint64(brow[i])
			sa += pa
			sb += pb
			saa += pa * pa
			sbb += pb * pb
			sab += pa * pb
		}
	}

	n := float64(w * h)
	meanA := float64(sa) / n
	meanB := float64(sb) / n
	varA := float64(saa)/n - meanA*meanA
	varB := float64(sbb)/n - meanB*meanB
	cov := float64(sab)/n - meanA*meanB

	num := (2*meanA*meanB + c1) * (2*cov + c2)
	den := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	return num / den
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
