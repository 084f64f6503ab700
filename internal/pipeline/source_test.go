package pipeline

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-graves/the-zyndicator/internal/utils"
)

func TestSliceSource(t *testing.T) {
	a := image.NewRGBA(image.Rect(0, 0, 2, 2))
	b := image.NewRGBA(image.Rect(0, 0, 3, 3))
	src := NewSliceSource(a, b)
	ctx := context.Background()

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Index)
	assert.Equal(t, "frame-0000", f.Name)
	assert.Same(t, a, f.Image)

	f, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Index)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, src.Close())
}

func TestSliceSource_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSliceSource(image.NewRGBA(image.Rect(0, 0, 1, 1))).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for _, name := range []string{"b.png", "a.jpg"} {
		require.NoError(t, utils.SaveImage(img, filepath.Join(dir, name)))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	src, err := OpenSource(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Len())

	f, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", f.Name)
	assert.Equal(t, 4, f.Image.Bounds().Dx())

	single, err := OpenSource(filepath.Join(dir, "b.png"))
	require.NoError(t, err)
	assert.Equal(t, 1, single.Len())
}

func TestOpenSource_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenSource(filepath.Join(dir, "missing"))
	assert.Error(t, err)

	_, err = OpenSource(dir)
	assert.ErrorContains(t, err, "no images")

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, err = OpenSource(txt)
	assert.ErrorContains(t, err, "unsupported")
}

func TestFileSource_UnreadableFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := NewFileSource([]string{path}).Next(context.Background())
	require.Error(t, err)
	assert.True(t, isFrameError(err))

	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "broken.png", fe.Name)
	assert.Contains(t, fe.Error(), "frame 0 (broken.png)")
	assert.False(t, isFrameError(io.EOF))
}
