package ocr

import (
	"ocr-translator/geometry"
	"ocr-translator/models"
)

// 版面区域标签
const (
	LabelText           = "text"
	LabelParagraphTitle = "paragraph_title"
	LabelFormula        = "formula"
)

// groupedLabels 参与段落组装的区域标签，其余（图片、表格等）跳过
var groupedLabels = map[string]bool{
	LabelText:           true,
	LabelParagraphTitle: true,
	LabelFormula:        true,
}

// RawResult 不透明检测器返回的 JSON 结构
type RawResult = map[string]interface{}

// LayoutRegion 版面检测得到的区域，创建后不可变
type LayoutRegion struct {
	Label string               `json:"label"`
	Box   geometry.BoundingBox `json:"box"`
	Score float64              `json:"score,omitempty"`
}

// TextFragment 一行识别文本
type TextFragment struct {
	Box  geometry.BoundingBox `json:"box"`
	Text string               `json:"text"`
}

// FormulaFragment 一个识别出的公式
type FormulaFragment struct {
	Box   geometry.BoundingBox `json:"box"`
	Latex string               `json:"latex"`
}

// Paragraph 同一版面区域内按阅读顺序组装的内容
type Paragraph struct {
	Type            string               `json:"type"`
	Box             geometry.BoundingBox `json:"bbox"`
	Content         string               `json:"content"`
	ElementCount    int                  `json:"num_elements"`
	OriginalContent string               `json:"original_content,omitempty"`
}

// Degradation 页面降级原因
type Degradation struct {
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Page 单页内容，降级页的段落为空但页码保留
type Page struct {
	Index      int          `json:"page"`
	Paragraphs []Paragraph  `json:"paragraphs"`
	Degraded   *Degradation `json:"degraded,omitempty"`
}

// IsDegraded 是否为降级页
func (p Page) IsDegraded() bool {
	return p.Degraded != nil
}

// Document 一份源 PDF 的全部页面，页码与源文件一一对应
type Document struct {
	Source string `json:"source"`
	Pages  []Page `json:"pages"`
}

// DegradedPages 降级页的页码
func (d *Document) DegradedPages() []int {
	var pages []int
	for _, p := range d.Pages {
		if p.IsDegraded() {
			pages = append(pages, p.Index)
		}
	}
	return pages
}

// Errors 降级页对应的错误，用于在文档层面上报
func (d *Document) Errors() []error {
	var errs []error
	for _, p := range d.Pages {
		if p.Degraded != nil {
			errs = append(errs, models.NewPageError(models.ErrDetectionDegraded, p.Index, p.Degraded.Reason, p.Degraded.Err))
		}
	}
	return errs
}

// ParagraphCount 段落总数
func (d *Document) ParagraphCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Paragraphs)
	}
	return n
}

// PageRecognition 单页识别结果
//
// Degraded 非空表示检测器失败，调用方必须将该页视为空页。
// Warnings 记录被丢弃的畸形检测结果。
type PageRecognition struct {
	Regions  []LayoutRegion
	Texts    []TextFragment
	Formulas []FormulaFragment
	Degraded *Degradation
	Warnings []error
}
