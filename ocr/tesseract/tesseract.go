package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"ocr-translator/ocr"
)

var _ ocr.TextDetector = (*Detector)(nil)

// Detector 基于本地 Tesseract 的文本检测器
//
// 以文本行为单位输出，多边形为行框的四个角点。gosseract 客户端
// 非线程安全，每次调用创建独立客户端，因此可并发使用。
type Detector struct {
	Languages []string
	DPI       int

	clientFactory func() *gosseract.Client
}

// New 创建 Tesseract 文本检测器
func New(languages []string, dpi int) *Detector {
	return &Detector{
		Languages:     languages,
		DPI:           dpi,
		clientFactory: gosseract.NewClient,
	}
}

// PoolSafe 实现 ocr.PoolSafe
func (d *Detector) PoolSafe() bool { return true }

// Detect 识别文本行
func (d *Detector) Detect(ctx context.Context, img image.Image) (ocr.RawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("编码页面图像失败: %w", err)
	}

	c := d.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(d.Languages) > 0 {
		if err := c.SetLanguage(d.Languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	if d.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(d.DPI)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize text lines: %w", err)
	}

	polys := make([]interface{}, 0, len(boxes))
	texts := make([]interface{}, 0, len(boxes))
	for _, b := range boxes {
		polys = append(polys, rectPolygon(b.Box))
		texts = append(texts, strings.TrimSpace(b.Word))
	}

	return ocr.RawResult{"dt_polys": polys, "rec_texts": texts}, nil
}

// rectPolygon 矩形转为顺时针四点多边形
func rectPolygon(r image.Rectangle) []interface{} {
	pt := func(x, y int) []interface{} {
		return []interface{}{float64(x), float64(y)}
	}
	return []interface{}{
		pt(r.Min.X, r.Min.Y),
		pt(r.Max.X, r.Min.Y),
		pt(r.Max.X, r.Max.Y),
		pt(r.Min.X, r.Max.Y),
	}
}
