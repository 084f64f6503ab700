// Package recognizer turns upright label patches into text. It wraps the OCR
// engines the scanner can run against and the small preprocessing and
// post-processing steps shared by all of them.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/matthew-graves/the-zyndicator/internal/models"
	"github.com/matthew-graves/the-zyndicator/internal/onnx"
)

// Backend names an OCR engine.
type Backend string

const (
	// BackendONNX runs a PaddleOCR-style CTC recognition model.
	BackendONNX Backend = "onnx"
	// BackendTesseract runs Tesseract through gosseract (build tag ocr_tesseract).
	BackendTesseract Backend = "tesseract"
)

// DefaultWhitelist is the character set printed on the labels.
const DefaultWhitelist = "BCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefghijklmnopqrstuvwxyz"

var (
	// ErrBackendUnavailable is returned when a backend is not compiled in.
	ErrBackendUnavailable = errors.New("recognizer: backend not available in this build")
	// ErrClosed is returned by Recognize after Close.
	ErrClosed = errors.New("recognizer: closed")
)

// TextRecognizer reads a single line of text from a patch. Implementations
// are not safe for concurrent Recognize calls.
type TextRecognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Warmup(iterations int) error
	Close() error
}

// Config selects and tunes a backend.
type Config struct {
	Backend Backend

	// ONNX backend
	ModelPath        string
	DictPath         string
	LibraryPath      string // explicit onnxruntime shared library, optional
	ImageHeight      int
	MaxWidth         int
	PadWidthMultiple int
	NumThreads       int
	GPU              onnx.GPUConfig

	// Tesseract backend
	Language string
	PageMode int // tesseract page segmentation mode; 7 is a single text line

	// Whitelist restricts output characters for every backend; empty disables.
	Whitelist string
	Clean     CleanOptions
}

// DefaultConfig returns the ONNX backend with the label whitelist.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendONNX,
		ModelPath:        models.GetRecognitionModelPath("", false),
		DictPath:         models.GetDictionaryPath("", models.DictionaryPPOCRKeysV1),
		ImageHeight:      48,
		PadWidthMultiple: 8,
		GPU:              onnx.DefaultGPUConfig(),
		Language:         "eng",
		PageMode:         7,
		Whitelist:        DefaultWhitelist,
		Clean:            DefaultCleanOptions(),
	}
}

// Validate checks the settings relevant to the selected backend.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendONNX:
		if c.ModelPath == "" {
			return errors.New("model path cannot be empty")
		}
		if c.DictPath == "" {
			return errors.New("dictionary path cannot be empty")
		}
		if c.ImageHeight < 0 {
			return fmt.Errorf("invalid image height: %d", c.ImageHeight)
		}
		return c.GPU.Validate()
	case BackendTesseract:
		if c.Language == "" {
			return errors.New("tesseract language cannot be empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown recognizer backend: %q", c.Backend)
	}
}

// New builds the recognizer selected by cfg.Backend.
func New(cfg Config) (TextRecognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendTesseract:
		return newTesseract(cfg)
	default:
		return NewONNXRecognizer(cfg)
	}
}

// finish applies post-processing and the whitelist to raw engine output.
func finish(raw string, cfg Config) string {
	s := PostProcessText(raw, cfg.Clean)
	if cfg.Whitelist != "" {
		s = FilterWhitelist(s, cfg.Whitelist)
	}
	return strings.TrimSpace(s)
}

// FilterWhitelist drops every rune of s that is not in allowed. Spaces survive
// so that word boundaries are kept for later trimming.
func FilterWhitelist(s, allowed string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == ' ' || strings.ContainsRune(allowed, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
