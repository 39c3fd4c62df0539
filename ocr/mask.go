package ocr

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// MaskRegions 在页面副本上将公式区域涂白，原图不被修改
func MaskRegions(src image.Image, regions []LayoutRegion, label string) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	white := image.NewUniform(color.White)
	for _, r := range regions {
		if r.Label != label {
			continue
		}
		rect := r.Box.Rect().Intersect(bounds)
		if rect.Empty() {
			continue
		}
		draw.Draw(dst, rect, white, image.Point{}, draw.Src)
	}
	return dst
}
