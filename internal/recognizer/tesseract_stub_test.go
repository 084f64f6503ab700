//go:build !ocr_tesseract

package recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_TesseractNotLinked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendTesseract

	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
