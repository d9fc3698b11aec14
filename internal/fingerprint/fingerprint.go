// Package fingerprint computes 64-bit difference hashes used as the cheap
// structural signal of change detection.
package fingerprint

import (
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"golang.org/x/image/draw"

	"glimpse/internal/imaging"
)

const (
	gridWidth  = 9
	gridHeight = 8
)

// Hash is a 64-bit difference hash. Bit row*8+col is set when the sampled
// pixel at (col,row) is brighter than its right neighbour. The zero value
// means "unknown" and is what degenerate images produce.
type Hash uint64

// Compute downsamples img to a 9×8 luma grid and packs the 64 left/right
// comparisons low-to-high.
func Compute(img image.Image) Hash {
	if img == nil || img.Bounds().Empty() {
		return 0
	}
	small := image.NewRGBA(image.Rect(0, 0, gridWidth, gridHeight))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)
	gray := imaging.Gray(small)

	var h Hash
	for y := 0; y < gridHeight; y++ {
		for x := 0; x < gridWidth-1; x++ {
			if gray.GrayAt(x, y).Y > gray.GrayAt(x+1, y).Y {
				h |= 1 << uint(y*(gridWidth-1)+x)
			}
		}
	}
	return h
}

// Distance is the Hamming distance between two hashes, 0..64.
func Distance(a, b Hash) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// IsZero reports whether h is the "unknown" sentinel.
func (h Hash) IsZero() bool { return h == 0 }

// String renders the hash as 16 lowercase hex digits.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Parse reverses String.
func Parse(s string) (Hash, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse fingerprint %q: %w", s, err)
	}
	return Hash(v), nil
}
