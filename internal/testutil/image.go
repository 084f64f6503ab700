package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabelFrameConfig describes a frame showing a printed label: a QR symbol
// with the human-readable code printed underneath.
type LabelFrameConfig struct {
	QR         QRFrameConfig
	Code       string
	Face       font.Face
	Foreground color.Color
	Gap        int     // pixels between the symbol bottom and the text top
	Rotation   float64 // degrees, counter-clockwise
}

// DefaultLabelFrameConfig returns a label whose text lands inside the band
// projected with the stock calibration.
func DefaultLabelFrameConfig() LabelFrameConfig {
	return LabelFrameConfig{
		QR:         DefaultQRFrameConfig(),
		Code:       "ZYN-482135",
		Face:       basicfont.Face7x13,
		Foreground: color.Black,
		Gap:        20,
	}
}

// GenerateLabelFrame renders the label. With a non-zero Rotation the whole
// frame is rotated and grows to fit; uncovered corners are white.
func GenerateLabelFrame(cfg LabelFrameConfig) (*image.RGBA, error) {
	if cfg.Face == nil {
		return nil, fmt.Errorf("label frame needs a font face")
	}
	img, symbol, err := renderQRFrame(cfg.QR)
	if err != nil {
		return nil, err
	}

	if cfg.Code != "" {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{C: cfg.Foreground},
			Face: cfg.Face,
		}
		ascent := cfg.Face.Metrics().Ascent.Ceil()
		drawer.Dot = fixed.P(symbol.Min.X, symbol.Max.Y+cfg.Gap+ascent)
		drawer.DrawString(cfg.Code)
	}

	if cfg.Rotation == 0 {
		return img, nil
	}
	rotated := imaging.Rotate(img, cfg.Rotation, color.White)
	rgba := image.NewRGBA(rotated.Bounds())
	draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
	return rgba, nil
}

// CreateTestImage returns a frame filled with a single color.
func CreateTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

// SaveImage writes img to path, creating parent directories. The format
// follows the file extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image file %s", path)
	return img
}

// CompareImages reports whether the mean per-pixel RGBA distance between
// two images of equal bounds stays within tolerance (0..1).
func CompareImages(img1, img2 image.Image, tolerance float64) bool {
	bounds := img1.Bounds()
	if bounds != img2.Bounds() || bounds.Empty() {
		return false
	}

	var totalDiff float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, a1 := img1.At(x, y).RGBA()
			r2, g2, b2, a2 := img2.At(x, y).RGBA()

			dr := float64(r1) - float64(r2)
			dg := float64(g1) - float64(g2)
			db := float64(b1) - float64(b2)
			da := float64(a1) - float64(a2)
			totalDiff += math.Sqrt(dr*dr + dg*dg + db*db + da*da)
		}
	}

	avgDiff := totalDiff / float64(bounds.Dx()*bounds.Dy())
	maxDiff := math.Sqrt(4 * 65535 * 65535)
	return avgDiff/maxDiff <= tolerance
}
