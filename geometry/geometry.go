package geometry

import (
	"image"
	"math"
)

// BoundingBox 页面像素坐标系下的矩形框，满足 X1<=X2, Y1<=Y2
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NewBoundingBox 创建矩形框，自动交换颠倒的坐标
func NewBoundingBox(x1, y1, x2, y2 float64) BoundingBox {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width 宽度
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height 高度
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Rect 转换为 image.Rectangle（向外取整，保证完全覆盖原区域）
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.X1)),
		int(math.Floor(b.Y1)),
		int(math.Ceil(b.X2)),
		int(math.Ceil(b.Y2)),
	)
}

// Slice 返回 [x1, y1, x2, y2]
func (b BoundingBox) Slice() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

// CenterOf 计算矩形框中心点
func CenterOf(b BoundingBox) (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// PointInBox 判断点是否落在矩形框内（四条边均包含在内）
func PointInBox(cx, cy float64, b BoundingBox) bool {
	return b.X1 <= cx && cx <= b.X2 && b.Y1 <= cy && cy <= b.Y2
}
