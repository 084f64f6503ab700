package roi

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// ErrEmptyPatch is returned when a rectangle rounds to a zero-sized patch.
var ErrEmptyPatch = errors.New("roi: empty patch")

// Extractor samples rotated rectangles out of frames.
type Extractor struct {
	interp draw.Transformer
}

// NewExtractor returns an extractor using bilinear interpolation.
func NewExtractor() *Extractor {
	return &Extractor{interp: draw.BiLinear}
}

// Extract returns an upright copy of the region r of src. The patch is
// round(Width) x round(Height); pixels whose source location falls outside src
// are left transparent.
func (e *Extractor) Extract(src image.Image, r RotatedRect) (*image.RGBA, error) {
	if src == nil {
		return nil, errors.New("roi: nil source image")
	}
	w, h := r.PatchSize()
	if w < 1 || h < 1 {
		return nil, ErrEmptyPatch
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	e.interp.Transform(dst, sourceToPatch(r, w, h), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// Extract samples r from src with the default extractor.
func Extract(src image.Image, r RotatedRect) (*image.RGBA, error) {
	return NewExtractor().Extract(src, r)
}

// sourceToPatch builds the affine map from frame coordinates into the patch:
// move the rectangle centre to the origin, rotate by -Angle, then move the
// origin to the patch centre.
func sourceToPatch(r RotatedRect, w, h int) f64.Aff3 {
	cos, sin := math.Cos(r.Angle), math.Sin(r.Angle)
	c := r.Center()
	pcx, pcy := float64(w)/2, float64(h)/2
	return f64.Aff3{
		cos, sin, pcx - (cos*c.X + sin*c.Y),
		-sin, cos, pcy - (-sin*c.X + cos*c.Y),
	}
}
