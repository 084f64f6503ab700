package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// QRFrameConfig describes a synthetic camera frame holding one QR symbol.
type QRFrameConfig struct {
	Content string
	Size    int         // edge of the encoded bitmap, quiet zone included
	At      image.Point // where the bitmap is pasted
	Width   int
	Height  int
}

// DefaultQRFrameConfig matches the geometry used across the scanner tests:
// a version 1 symbol drawn 147px wide with its top-left corner at (131,131).
func DefaultQRFrameConfig() QRFrameConfig {
	return QRFrameConfig{
		Content: "hello",
		Size:    210,
		At:      image.Pt(100, 100),
		Width:   400,
		Height:  400,
	}
}

// GenerateQRFrame renders a white frame with a QR symbol pasted at cfg.At.
func GenerateQRFrame(cfg QRFrameConfig) (*image.RGBA, error) {
	img, _, err := renderQRFrame(cfg)
	return img, err
}

// renderQRFrame is GenerateQRFrame that also reports the dark modules'
// bounding box in frame coordinates.
func renderQRFrame(cfg QRFrameConfig) (*image.RGBA, image.Rectangle, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, image.Rectangle{}, fmt.Errorf("invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	matrix, err := qrcode.NewQRCodeWriter().Encode(cfg.Content, gozxing.BarcodeFormat_QR_CODE, cfg.Size, cfg.Size, nil)
	if err != nil {
		return nil, image.Rectangle{}, fmt.Errorf("encode qr: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	var symbol image.Rectangle
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if !matrix.Get(x, y) {
				continue
			}
			p := image.Pt(cfg.At.X+x, cfg.At.Y+y)
			img.SetRGBA(p.X, p.Y, color.RGBA{0, 0, 0, 255})
			symbol = symbol.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
		}
	}
	return img, symbol, nil
}

// DrawBlock paints a dark filled block where a printed code would sit. It is
// only meant to give the extractor non-blank content.
func DrawBlock(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}
