package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode/detector"

	"github.com/matthew-graves/the-zyndicator/internal/roi"
	"github.com/matthew-graves/the-zyndicator/internal/utils"
)

// finderHalf is the distance in modules from a finder pattern centre to the
// outer edge of the symbol.
const finderHalf = 3.5

// Locator reports the quadrilateral of the QR symbol in an image.
// ok is false when no symbol is present; err is reserved for failures of
// the locator itself.
type Locator interface {
	Locate(ctx context.Context, img image.Image) (quad roi.Quad, ok bool, err error)
}

// Options controls the QR locator.
type Options struct {
	// TryHarder asks the detector for a more exhaustive finder search.
	TryHarder bool

	// DecodeValue additionally decodes the payload of the symbol.
	DecodeValue bool
}

// DefaultOptions returns the locator defaults.
func DefaultOptions() Options {
	return Options{}
}

// Detection describes a located QR symbol.
type Detection struct {
	Quad      roi.Quad
	Dimension int    // modules per side
	Value     string // empty unless DecodeValue is set
}

// QRLocator finds QR symbols with gozxing.
type QRLocator struct {
	opts  Options
	hints map[gozxing.DecodeHintType]interface{}
}

// NewQRLocator creates a locator.
func NewQRLocator(opts Options) *QRLocator {
	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return &QRLocator{opts: opts, hints: hints}
}

// Locate implements Locator.
func (l *QRLocator) Locate(ctx context.Context, img image.Image) (roi.Quad, bool, error) {
	d, ok, err := l.Detect(ctx, img)
	if err != nil || !ok {
		return roi.Quad{}, ok, err
	}
	return d.Quad, true, nil
}

// Detect runs the finder search and returns the full detection.
func (l *QRLocator) Detect(ctx context.Context, img image.Image) (Detection, bool, error) {
	if err := ctx.Err(); err != nil {
		return Detection{}, false, err
	}
	if img == nil {
		return Detection{}, false, errors.New("nil image")
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Detection{}, false, nil
	}

	source := gozxing.NewLuminanceSourceFromImage(img)
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return Detection{}, false, nil
	}
	matrix, err := bitmap.GetBlackMatrix()
	if err != nil {
		// The binarizer fails on images with no usable contrast.
		return Detection{}, false, nil
	}

	res, err := detector.NewDetector(matrix).Detect(l.hints)
	if err != nil {
		if isNotFound(err) {
			return Detection{}, false, nil
		}
		return Detection{}, false, fmt.Errorf("qr detect: %w", err)
	}

	pts := res.GetPoints()
	if len(pts) < 3 {
		return Detection{}, false, nil
	}
	dim := res.GetBits().GetWidth()
	quad, ok := cornersFromFinders(pts[1], pts[2], pts[0], dim)
	if !ok {
		return Detection{}, false, nil
	}
	// Finder centres are reported relative to the image origin.
	quad = quad.Translate(float64(b.Min.X), float64(b.Min.Y))

	d := Detection{Quad: quad, Dimension: dim}
	if l.opts.DecodeValue {
		if r, err := qrcode.NewQRCodeReader().Decode(bitmap, l.hints); err == nil {
			d.Value = r.GetText()
		}
	}
	return d, true, nil
}

// cornersFromFinders extrapolates the outer corners of a symbol of dim
// modules from its top-left, top-right and bottom-left finder centres.
func cornersFromFinders(tl, tr, bl gozxing.ResultPoint, dim int) (roi.Quad, bool) {
	span := float64(dim) - 2*finderHalf
	if span <= 0 {
		return roi.Quad{}, false
	}
	ux := (tr.GetX() - tl.GetX()) / span
	uy := (tr.GetY() - tl.GetY()) / span
	vx := (bl.GetX() - tl.GetX()) / span
	vy := (bl.GetY() - tl.GetY()) / span

	at := func(p gozxing.ResultPoint, su, sv float64) utils.Point {
		return utils.Point{
			X: p.GetX() + su*ux + sv*vx,
			Y: p.GetY() + su*uy + sv*vy,
		}
	}

	q := roi.Quad{
		TopLeft:    at(tl, -finderHalf, -finderHalf),
		TopRight:   at(tr, finderHalf, -finderHalf),
		BottomLeft: at(bl, -finderHalf, finderHalf),
	}
	q.BottomRight = utils.Point{
		X: q.TopRight.X + q.BottomLeft.X - q.TopLeft.X,
		Y: q.TopRight.Y + q.BottomLeft.Y - q.TopLeft.Y,
	}
	if !q.Finite() {
		return roi.Quad{}, false
	}
	return q, true
}

func isNotFound(err error) bool {
	var nf gozxing.NotFoundException
	var fe gozxing.FormatException
	return errors.As(err, &nf) || errors.As(err, &fe)
}
