//go:build !ocr_tesseract

package recognizer

import "fmt"

func newTesseract(Config) (TextRecognizer, error) {
	return nil, fmt.Errorf("%w: tesseract (build with -tags=ocr_tesseract)", ErrBackendUnavailable)
}
