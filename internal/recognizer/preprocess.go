package recognizer

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/matthew-graves/the-zyndicator/internal/onnx"
)

// ResizeForRecognition scales img to targetHeight keeping the aspect ratio.
// maxWidth > 0 clamps the width; padToMultiple > 0 right-pads it with black.
func ResizeForRecognition(img image.Image, targetHeight, maxWidth, padToMultiple int) (image.Image, int, int, error) {
	if img == nil {
		return nil, 0, 0, errors.New("input image is nil")
	}
	if targetHeight <= 0 {
		return nil, 0, 0, fmt.Errorf("invalid targetHeight: %d", targetHeight)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, 0, 0, fmt.Errorf("empty image %dx%d", w, h)
	}

	newW := max(int(float64(w)*float64(targetHeight)/float64(h)), 1)
	if maxWidth > 0 && newW > maxWidth {
		newW = maxWidth
	}
	resized := imaging.Resize(img, newW, targetHeight, imaging.Lanczos)

	outW := newW
	if padToMultiple > 0 {
		if rem := newW % padToMultiple; rem != 0 {
			outW = newW + padToMultiple - rem
		}
	}
	if outW == newW {
		return resized, outW, targetHeight, nil
	}
	canvas := imaging.New(outW, targetHeight, color.Black)
	canvas = imaging.Paste(canvas, resized, image.Pt(0, 0))
	return canvas, outW, targetHeight, nil
}

// NormalizeForRecognition converts an image to a [1, 3, H, W] tensor in [-1, 1].
func NormalizeForRecognition(img image.Image) (onnx.Tensor, error) {
	return onnx.ImageToTensor(img, 0.5, 0.5)
}
