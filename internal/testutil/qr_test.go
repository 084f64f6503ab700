package testutil

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateQRFrame(t *testing.T) {
	img, err := GenerateQRFrame(DefaultQRFrameConfig())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 400), img.Bounds())

	// Quiet zone is white, the top-left finder corner is black.
	assert.Equal(t, uint8(255), img.RGBAAt(120, 120).R)
	assert.Equal(t, uint8(0), img.RGBAAt(132, 132).R)
}

func TestGenerateQRFrame_InvalidSize(t *testing.T) {
	cfg := DefaultQRFrameConfig()
	cfg.Width = 0
	_, err := GenerateQRFrame(cfg)
	assert.Error(t, err)
}

func TestRenderQRFrame_SymbolBounds(t *testing.T) {
	_, symbol, err := renderQRFrame(DefaultQRFrameConfig())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(131, 131, 278, 278), symbol)
}
