// Package roi derives the text region that sits next to a detected QR code
// and samples it out of a frame as an upright patch.
package roi

import (
	"math"

	"github.com/matthew-graves/the-zyndicator/internal/utils"
)

// Quad is a QR code outline as reported by a locator. Corner order is fixed:
// top-left, top-right, bottom-right, bottom-left in the symbol's own frame.
type Quad struct {
	TopLeft     utils.Point
	TopRight    utils.Point
	BottomRight utils.Point
	BottomLeft  utils.Point
}

// Points returns the corners in TL, TR, BR, BL order.
func (q Quad) Points() []utils.Point {
	return []utils.Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Translate returns the quad shifted by (dx, dy).
func (q Quad) Translate(dx, dy float64) Quad {
	return Quad{
		TopLeft:     utils.OffsetPoint(q.TopLeft, dx, dy),
		TopRight:    utils.OffsetPoint(q.TopRight, dx, dy),
		BottomRight: utils.OffsetPoint(q.BottomRight, dx, dy),
		BottomLeft:  utils.OffsetPoint(q.BottomLeft, dx, dy),
	}
}

// Finite reports whether every corner has finite coordinates.
func (q Quad) Finite() bool {
	for _, p := range q.Points() {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return true
}

// RotatedRect is a rectangle whose top-left corner sits at the origin and
// which is rotated by Angle radians about that origin.
type RotatedRect struct {
	OriginX float64
	OriginY float64
	Width   float64
	Height  float64
	Angle   float64
}

// Corners returns the rotated corners in TL, TR, BR, BL order.
func (r RotatedRect) Corners() []utils.Point {
	cos, sin := math.Cos(r.Angle), math.Sin(r.Angle)
	at := func(x, y float64) utils.Point {
		return utils.Point{
			X: r.OriginX + x*cos - y*sin,
			Y: r.OriginY + x*sin + y*cos,
		}
	}
	return []utils.Point{
		at(0, 0),
		at(r.Width, 0),
		at(r.Width, r.Height),
		at(0, r.Height),
	}
}

// Center returns the rectangle centre in source coordinates.
func (r RotatedRect) Center() utils.Point {
	cos, sin := math.Cos(r.Angle), math.Sin(r.Angle)
	hw, hh := r.Width/2, r.Height/2
	return utils.Point{
		X: r.OriginX + hw*cos - hh*sin,
		Y: r.OriginY + hw*sin + hh*cos,
	}
}

// PatchSize returns the pixel size of the upright patch for this rectangle.
func (r RotatedRect) PatchSize() (int, int) {
	return int(math.Round(r.Width)), int(math.Round(r.Height))
}
