// Package imaging holds the in-memory frame type and the pixel plumbing shared
// by the detector and the enrichment pipeline: luma conversion, bounded
// downscaling, and PNG/JPEG encoding.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
	"time"

	"github.com/disintegration/gift"
	"golang.org/x/image/draw"
)

// Supported encodings for stored screenshots.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// Frame is one display's raw pixels at one instant. Frames are owned by the
// capture cycle that produced them.
type Frame struct {
	Display    int
	Image      *image.RGBA
	CapturedAt time.Time
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Image == nil || f.Image.Bounds().Empty()
}

// Gray converts img to 8-bit luma with bounds rebased at the origin.
// A *image.Gray already at the origin is returned as is.
func Gray(img image.Image) *image.Gray {
	if img == nil {
		return image.NewGray(image.Rectangle{})
	}
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// FitSize returns the largest size no bigger than maxW×maxH that keeps the
// aspect ratio of w×h. Sizes already inside the bounds are returned unchanged.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if maxW <= 0 || maxH <= 0 || (w <= maxW && h <= maxH) {
		return w, h
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))
	return min(nw, maxW), min(nh, maxH)
}

// Fit downscales img to fit within maxW×maxH preserving aspect ratio. Images
// that already fit are returned untouched; images are never upscaled.
func Fit(img image.Image, maxW, maxH int) image.Image {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxW, maxH)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	g := gift.New(gift.Resize(w, h, gift.LanczosResampling))
	dst := image.NewRGBA(g.Bounds(b))
	g.Draw(dst, img)
	return dst
}

// NormalizeFormat maps user-facing format names onto FormatJPEG or FormatPNG.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "jpg", FormatJPEG:
		return FormatJPEG, nil
	case FormatPNG:
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported image format %q", format)
	}
}

// Extension returns the file extension, with dot, for a normalized format.
func Extension(format string) string {
	if format == FormatPNG {
		return ".png"
	}
	return ".jpg"
}

// Encode writes img to w in the given format. Quality applies to JPEG only.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	normalized, err := NormalizeFormat(format)
	if err != nil {
		return err
	}
	switch normalized {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		return enc.Encode(w, img)
	default:
		if quality < 1 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	}
}

// EncodeBytes is Encode into a fresh buffer.
func EncodeBytes(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format, quality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses PNG or JPEG bytes.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}
