package render

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"

	"ocr-translator/models"
	"ocr-translator/pdf"
)

// GofpdfWriter 使用 gofpdf 输出
//
// A4 纸张，左右上 72pt 边距，每个源页面另起一页。
// 找不到 UTF-8 字体时退回内置 Helvetica（仅覆盖 cp1252 字符）。
type GofpdfWriter struct {
	Options Options
	Logger  logrus.FieldLogger
}

type gofpdfState struct {
	doc    *gofpdf.Fpdf
	family string
	tr     func(string) string
	cp1252 func(string) string
	images int
}

// Write 实现 Writer
func (w *GofpdfWriter) Write(blocks []Block, outputPath string) error {
	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, bottomMargin)
	if w.Options.Title != "" {
		doc.SetTitle(w.Options.Title, true)
	}
	doc.SetCreator("ocr-translator", true)

	cp1252 := doc.UnicodeTranslatorFromDescriptor("")
	st := &gofpdfState{doc: doc, family: "Helvetica", tr: cp1252, cp1252: cp1252}
	if fontPath := pdf.ResolveFont(w.Options.FontPath, w.Options.Language); fontPath != "" {
		family := pdf.FontFamily(fontPath)
		doc.AddUTF8Font(family, "", fontPath)
		if doc.Err() {
			w.logger().WithError(doc.Error()).WithField("font", fontPath).Warn("加载字体失败，使用 Helvetica")
			doc.ClearError()
		} else {
			st.family = family
			st.tr = func(s string) string { return s }
		}
	}

	for _, b := range blocks {
		if b.Kind != KindPageMarker && doc.PageNo() == 0 {
			doc.AddPage()
		}
		switch b.Kind {
		case KindPageMarker:
			doc.AddPage()
			st.marker(b.Text)
		case KindText:
			st.text(b)
		case KindFormulaFallback:
			st.fallback(b.Text)
		case KindImage:
			st.image(b)
		}
		if doc.Err() {
			return models.NewError(models.ErrOutput, "生成PDF失败", doc.Error())
		}
	}

	if doc.PageNo() == 0 {
		doc.AddPage()
	}
	if err := doc.OutputFileAndClose(outputPath); err != nil {
		return models.NewError(models.ErrOutput, "保存PDF文件失败", err)
	}
	return nil
}

func (st *gofpdfState) setColor(c [3]uint8) {
	st.doc.SetTextColor(int(c[0]), int(c[1]), int(c[2]))
}

func (st *gofpdfState) marker(text string) {
	st.doc.SetFont(st.family, "", markerSize)
	st.setColor(colorGray)
	st.doc.CellFormat(0, markerSize+4, st.tr(text), "", 1, "C", false, 0, "")
	st.doc.Ln(markerSize + 5)
}

func (st *gofpdfState) text(b Block) {
	size, leading := bodySize, bodyLeading
	if b.Style == StyleHeading {
		size, leading = headingSize, headingLeading
	}
	st.doc.SetFont(st.family, "", size)
	st.setColor(colorBlack)
	st.doc.MultiCell(0, leading, st.tr(b.Text), "", "L", false)
	st.doc.Ln(blockSpacing)
}

func (st *gofpdfState) fallback(text string) {
	left, _, right, _ := st.doc.GetMargins()
	st.doc.SetLeftMargin(left + fallbackIndent)
	st.doc.SetRightMargin(right + fallbackIndent)
	st.doc.SetX(left + fallbackIndent)

	st.doc.SetFont("Courier", "", fallbackSize)
	st.setColor(colorDarkBlue)
	st.doc.MultiCell(0, fallbackSize+4, st.cp1252(text), "", "L", false)

	st.doc.SetLeftMargin(left)
	st.doc.SetRightMargin(right)
	st.doc.SetX(left)
	st.doc.Ln(blockSpacing)
}

func (st *gofpdfState) image(b Block) {
	st.images++
	name := fmt.Sprintf("formula_%d", st.images)
	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}

	info := st.doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(b.Image))
	if info == nil || st.doc.Err() {
		// 图片无法解析时退回源码
		st.doc.ClearError()
		st.fallback(FallbackText(b.Source))
		return
	}
	info.SetDpi(300)

	pageW, _ := st.doc.GetPageSize()
	left, _, right, _ := st.doc.GetMargins()
	w, h := fitBox(info.Width(), info.Height(), pageW-left-right, maxFormulaH)

	st.doc.ImageOptions(name, left+(pageW-left-right-w)/2, -1, w, h, true, opts, 0, "")
	st.doc.Ln(blockSpacing)
}

func (w *GofpdfWriter) logger() logrus.FieldLogger {
	if w.Logger == nil {
		return logrus.StandardLogger()
	}
	return w.Logger
}

// fitBox 等比缩放到 maxW × maxH 以内，不放大
func fitBox(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := 1.0
	if w > maxW {
		scale = maxW / w
	}
	if h*scale > maxH {
		scale = maxH / h
	}
	return w * scale, h * scale
}
