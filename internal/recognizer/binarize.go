package recognizer

import (
	"image"
)

// LumaThreshold is the luma above which a pixel becomes white.
const LumaThreshold = 150

// Binarize returns a black and white copy of src. A pixel turns white when
// 0.3R + 0.59G + 0.11B > LumaThreshold and black otherwise. Alpha is kept.
// The weights are applied in integer hundredths so the threshold is exact.
func Binarize(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	dst := &image.RGBA{
		Pix:    make([]uint8, len(src.Pix)),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
	copy(dst.Pix, src.Pix)

	b := dst.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := dst.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			i := row + x*4
			p := dst.Pix[i : i+4 : i+4]
			luma := 30*int(p[0]) + 59*int(p[1]) + 11*int(p[2])
			var v uint8
			if luma > LumaThreshold*100 {
				v = 255
			}
			p[0], p[1], p[2] = v, v, v
		}
	}
	return dst
}
