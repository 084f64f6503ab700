package pipeline

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-graves/the-zyndicator/internal/roi"
)

func TestRenderOverlay(t *testing.T) {
	src := blankFrame()
	q := uprightQuad()
	rect, err := roi.NewProjector(roi.DefaultProjectorConfig()).Project(q)
	require.NoError(t, err)

	out := RenderOverlay(src, &q, &rect)
	require.NotNil(t, out)
	assert.Equal(t, src.Bounds(), out.Bounds())

	// Midpoint of the quad's top edge and of the band's top edge.
	assert.Equal(t, quadColor, out.RGBAAt(200, 131))
	assert.Equal(t, roiColor, out.RGBAAt(200, 288))
	// Source is untouched.
	assert.Equal(t, uint8(255), src.RGBAAt(200, 131).G)

	assert.Nil(t, RenderOverlay(nil, nil, nil))
}

func TestRenderOverlay_OffsetBounds(t *testing.T) {
	sub := blankFrame().SubImage(image.Rect(100, 100, 300, 300))
	q := uprightQuad()

	out := RenderOverlay(sub, &q, nil)
	assert.Equal(t, image.Rect(0, 0, 200, 200), out.Bounds())
	assert.Equal(t, quadColor, out.RGBAAt(100, 31))
}

func TestSaveOverlay(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "overlays")
	q := uprightQuad()

	path, err := SaveOverlay(dir, blankFrame(), &FrameResult{Index: 7, Quad: &q})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frame-0007_overlay.png"), path)
	assert.FileExists(t, path)

	path, err = SaveOverlay(dir, blankFrame(), &FrameResult{Name: "shot.jpeg"})
	require.NoError(t, err)
	assert.Equal(t, "shot_overlay.png", filepath.Base(path))

	_, err = SaveOverlay(dir, nil, &FrameResult{})
	assert.Error(t, err)
}
