// Package onnx holds the ONNX Runtime plumbing shared by model-backed
// recognizers: input tensors, execution providers and shared library lookup.
package onnx

import (
	"errors"
	"fmt"
	"image"
)

// Tensor is a float32 tensor laid out row-major (NCHW for images).
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor wraps CHW data as a [1, C, H, W] tensor.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if want := c * h * w; len(data) != want {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), want)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ImageToTensor converts an image into a [1, 3, H, W] tensor. Channels are
// scaled to [0,1] and then shifted by mean/std, the PaddleOCR recognition
// convention being mean = std = 0.5.
func ImageToTensor(img image.Image, mean, std float32) (Tensor, error) {
	if img == nil {
		return Tensor{}, errors.New("nil image")
	}
	if std == 0 {
		return Tensor{}, errors.New("std must be non-zero")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Tensor{}, fmt.Errorf("empty image %dx%d", w, h)
	}
	plane := w * h
	data := make([]float32, 3*plane)
	for y := range h {
		for x := range w {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = (float32(r>>8)/255 - mean) / std
			data[plane+i] = (float32(g>>8)/255 - mean) / std
			data[2*plane+i] = (float32(bl>>8)/255 - mean) / std
		}
	}
	return NewImageTensor(data, 3, h, w)
}

// VerifyImageTensor checks that data length matches a positive NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if len(t.Shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(t.Shape))
	}
	n := int64(1)
	for i, v := range t.Shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
		n *= v
	}
	if int64(len(t.Data)) != n {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), n, t.Shape)
	}
	return nil
}
