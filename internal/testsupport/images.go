package testsupport

import (
	"image"
	"image/color"
	"math/rand"
)

// Solid returns a w×h image filled with a single gray level.
func Solid(w, h int, level uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: level, G: level, B: level, A: 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Noise returns a deterministic pseudo-random gray image.
func Noise(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(rng.Intn(256))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 0xff})
		}
	}
	return img
}

// Invert returns the photographic negative of src.
func Invert(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	for i := 0; i+3 < len(src.Pix); i += 4 {
		dst.Pix[i] = 0xff - src.Pix[i]
		dst.Pix[i+1] = 0xff - src.Pix[i+1]
		dst.Pix[i+2] = 0xff - src.Pix[i+2]
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst
}

// Clone deep-copies src.
func Clone(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
