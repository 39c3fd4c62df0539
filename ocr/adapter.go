package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"ocr-translator/geometry"
	"ocr-translator/models"
)

// Adapter 调用两个不透明检测器并将输出归一化为片段
type Adapter struct {
	Layout LayoutDetector
	Text   TextDetector
}

// NewAdapter 创建识别适配器
func NewAdapter(layout LayoutDetector, text TextDetector) *Adapter {
	return &Adapter{Layout: layout, Text: text}
}

// PoolSafe 两个检测器都支持并发调用时返回 true
func (a *Adapter) PoolSafe() bool {
	return isPoolSafe(a.Layout) && isPoolSafe(a.Text)
}

// Recognize 识别单页
//
// 检测器返回错误时结果带 Degraded；检测器返回的结构无法解析时，
// 对应的产物降级为空列表并记录到 Warnings，不影响其他产物。
func (a *Adapter) Recognize(ctx context.Context, pageIndex int, img image.Image) PageRecognition {
	var rec PageRecognition

	layoutRaw, err := a.Layout.Detect(ctx, img)
	if err != nil {
		rec.Degraded = &Degradation{Reason: "版面检测失败", Err: err}
		return rec
	}

	root := unwrapResult(layoutRaw, pageIndex, &rec.Warnings)
	rec.Regions = parseLayoutRegions(root, pageIndex, &rec.Warnings)
	formulaRecords := parseFormulaRecords(root, pageIndex, &rec.Warnings)

	// 文本识别不能看到公式检测器认领的像素
	masked := MaskRegions(img, rec.Regions, LabelFormula)

	textRaw, err := a.Text.Detect(ctx, masked)
	if err != nil {
		rec.Regions = nil
		rec.Degraded = &Degradation{Reason: "文本识别失败", Err: err}
		return rec
	}

	rec.Texts = parseTextFragments(unwrapResult(textRaw, pageIndex, &rec.Warnings), pageIndex, &rec.Warnings)
	rec.Formulas = formulaRecords
	return rec
}

// unwrapResult 兼容 {"res": {...}} 包装；res 不是对象时记录警告并返回空结果
func unwrapResult(raw RawResult, page int, warnings *[]error) RawResult {
	if raw == nil {
		return RawResult{}
	}
	inner, exists := raw["res"]
	if !exists || inner == nil {
		return raw
	}
	m, ok := inner.(map[string]interface{})
	if !ok {
		*warnings = append(*warnings, assemblyWarning(page, "检测结果类型错误: %T", inner))
		return RawResult{}
	}
	return m
}

func assemblyWarning(page int, format string, args ...interface{}) error {
	return models.NewPageError(models.ErrAssembly, page, fmt.Sprintf(format, args...), nil)
}

// listField 读取列表字段；键缺失返回 nil，类型错误记录警告
func listField(m RawResult, key string, page int, warnings *[]error) []interface{} {
	v, exists := m[key]
	if !exists || v == nil {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		*warnings = append(*warnings, assemblyWarning(page, "字段 %s 类型错误: %T", key, v))
		return nil
	}
	return list
}

func parseLayoutRegions(root RawResult, page int, warnings *[]error) []LayoutRegion {
	det, exists := root["layout_det_res"]
	if !exists || det == nil {
		return nil
	}
	detMap, ok := det.(map[string]interface{})
	if !ok {
		*warnings = append(*warnings, assemblyWarning(page, "字段 layout_det_res 类型错误: %T", det))
		return nil
	}

	boxes := listField(detMap, "boxes", page, warnings)
	regions := make([]LayoutRegion, 0, len(boxes))
	for i, item := range boxes {
		m, ok := item.(map[string]interface{})
		if !ok {
			*warnings = append(*warnings, assemblyWarning(page, "版面框 %d 类型错误: %T", i, item))
			continue
		}
		label, _ := m["label"].(string)
		box, ok := geometry.PolygonToBBox(m["coordinate"])
		if !ok {
			*warnings = append(*warnings, assemblyWarning(page, "版面框 %d 坐标无效", i))
			continue
		}
		score, _ := geometry.ToFloat(m["score"])
		regions = append(regions, LayoutRegion{Label: label, Box: box, Score: score})
	}
	return regions
}

func parseFormulaRecords(root RawResult, page int, warnings *[]error) []FormulaFragment {
	records := listField(root, "formula_res_list", page, warnings)
	formulas := make([]FormulaFragment, 0, len(records))
	for i, item := range records {
		m, ok := item.(map[string]interface{})
		if !ok {
			*warnings = append(*warnings, assemblyWarning(page, "公式记录 %d 类型错误: %T", i, item))
			continue
		}
		latex, _ := m["rec_formula"].(string)
		latex = strings.TrimSpace(latex)
		if latex == "" {
			continue
		}
		box, ok := geometry.PolygonToBBox(m["dt_polys"])
		if !ok {
			continue
		}
		formulas = append(formulas, FormulaFragment{Box: box, Latex: latex})
	}
	return formulas
}

func parseTextFragments(root RawResult, page int, warnings *[]error) []TextFragment {
	polys := listField(root, "dt_polys", page, warnings)
	texts := listField(root, "rec_texts", page, warnings)

	n := len(polys)
	if len(texts) < n {
		n = len(texts)
	}

	fragments := make([]TextFragment, 0, n)
	for i := 0; i < n; i++ {
		text, _ := texts[i].(string)
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		box, ok := geometry.PolygonToBBox(polys[i])
		if !ok {
			continue
		}
		fragments = append(fragments, TextFragment{Box: box, Text: text})
	}
	return fragments
}
