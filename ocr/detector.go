package ocr

import (
	"context"
	"image"
)

// LayoutDetector 版面检测 + 公式识别
//
// 期望结构：
//
//	{"layout_det_res": {"boxes": [{"label": "...", "coordinate": [x1,y1,x2,y2]}]},
//	 "formula_res_list": [{"dt_polys": ..., "rec_formula": "..."}]}
//
// 可能整体包在 "res" 下，也可能缺少任意键。
type LayoutDetector interface {
	Detect(ctx context.Context, img image.Image) (RawResult, error)
}

// TextDetector 文本检测 + 识别，返回下标对齐的 {"dt_polys": [...], "rec_texts": [...]}
type TextDetector interface {
	Detect(ctx context.Context, img image.Image) (RawResult, error)
}

// Rasterizer 将 PDF 按给定 DPI 渲染为页面图像
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, dpi int) ([]image.Image, error)
}

// PoolSafe 可被多个 goroutine 同时调用的检测器实现此接口
type PoolSafe interface {
	PoolSafe() bool
}

// LayoutDetectorFunc 函数适配器
type LayoutDetectorFunc func(ctx context.Context, img image.Image) (RawResult, error)

// Detect 实现 LayoutDetector
func (f LayoutDetectorFunc) Detect(ctx context.Context, img image.Image) (RawResult, error) {
	return f(ctx, img)
}

// TextDetectorFunc 函数适配器
type TextDetectorFunc func(ctx context.Context, img image.Image) (RawResult, error)

// Detect 实现 TextDetector
func (f TextDetectorFunc) Detect(ctx context.Context, img image.Image) (RawResult, error) {
	return f(ctx, img)
}

func isPoolSafe(v interface{}) bool {
	ps, ok := v.(PoolSafe)
	return ok && ps.PoolSafe()
}
