package pipeline

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"

	"github.com/matthew-graves/the-zyndicator/internal/roi"
	"github.com/matthew-graves/the-zyndicator/internal/utils"
)

var (
	quadColor = color.RGBA{255, 0, 0, 255}
	roiColor  = color.RGBA{255, 255, 0, 255}
)

// RenderOverlay draws the QR quad in red and the code region in yellow over
// a copy of img. Either shape may be nil.
func RenderOverlay(img image.Image, quad *roi.Quad, rect *roi.RotatedRect) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	dx, dy := -float64(b.Min.X), -float64(b.Min.Y)
	if quad != nil {
		utils.DrawPolygon(dst, utils.OffsetPoints(quad.Points(), dx, dy), quadColor, 2)
	}
	if rect != nil {
		utils.DrawPolygon(dst, utils.OffsetPoints(rect.Corners(), dx, dy), roiColor, 2)
	}
	return dst
}

// SaveOverlay writes an overlay PNG for res into dir and returns its path.
func SaveOverlay(dir string, img image.Image, res *FrameResult) (string, error) {
	ov := RenderOverlay(img, res.Quad, res.ROI)
	if ov == nil {
		return "", errors.New("nothing to render")
	}
	name := res.Name
	if name == "" {
		name = fmt.Sprintf("frame-%04d", res.Index)
	}
	path := filepath.Join(dir, trimExt(name)+"_overlay.png")
	if err := utils.SaveImage(ov, path); err != nil {
		return "", fmt.Errorf("save overlay: %w", err)
	}
	return path, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
