package roi

import (
	"errors"
	"math"
)

// ErrDegenerateQuad is returned when a quad has no usable top edge.
var ErrDegenerateQuad = errors.New("roi: degenerate quad")

// ProjectorConfig holds the placement heuristics for the label band. The
// values assume the printed code runs below the QR code, starting a little to
// its left, and that the band is roughly four times wider than tall.
type ProjectorConfig struct {
	Padding     float64 // gap below the QR bottom edge, along the edge normal
	OffsetX     float64 // horizontal calibration shift of the origin
	WidthMargin float64 // added to the QR top-edge length
	AspectRatio float64 // height = floor(width * AspectRatio)
}

// DefaultProjectorConfig returns the calibration used for the stock labels.
func DefaultProjectorConfig() ProjectorConfig {
	return ProjectorConfig{
		Padding:     10,
		OffsetX:     -20,
		WidthMargin: 100,
		AspectRatio: 0.25,
	}
}

// Projector maps a QR quad to the rotated rectangle holding the label text.
type Projector struct {
	cfg ProjectorConfig
}

// NewProjector creates a projector with the given calibration.
func NewProjector(cfg ProjectorConfig) *Projector {
	return &Projector{cfg: cfg}
}

// Config returns the projector calibration.
func (p *Projector) Config() ProjectorConfig { return p.cfg }

// Project computes the label rectangle for q.
func (p *Projector) Project(q Quad) (RotatedRect, error) {
	if !q.Finite() {
		return RotatedRect{}, ErrDegenerateQuad
	}

	dx := q.TopRight.X - q.TopLeft.X
	dy := q.TopRight.Y - q.TopLeft.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return RotatedRect{}, ErrDegenerateQuad
	}

	ux, uy := dx/length, dy/length
	// Normal pointing "down" the symbol.
	vx, vy := -uy, ux

	w0 := length + p.cfg.WidthMargin
	h0 := math.Floor(w0 * p.cfg.AspectRatio)
	if w0 <= 0 || h0 <= 0 {
		return RotatedRect{}, ErrDegenerateQuad
	}

	return RotatedRect{
		OriginX: q.BottomLeft.X + vx*p.cfg.Padding + p.cfg.OffsetX,
		OriginY: q.BottomLeft.Y + vy*p.cfg.Padding,
		Width:   w0,
		Height:  h0,
		Angle:   math.Atan2(uy, ux),
	}, nil
}
