package render

import (
	"github.com/signintech/gopdf"

	"ocr-translator/models"
	"ocr-translator/pdf"
)

// GopdfWriter 使用 gopdf 输出，必须能找到 TTF 字体
type GopdfWriter struct {
	Options Options
}

// Write 实现 Writer
func (w *GopdfWriter) Write(blocks []Block, outputPath string) error {
	cfg := pdf.DefaultPDFConfig()
	cfg.Margins.Bottom = bottomMargin
	cfg.FontPath = w.Options.FontPath
	cfg.Language = w.Options.Language

	builder, err := pdf.NewPDFBuilder(cfg)
	if err != nil {
		return models.NewError(models.ErrOutput, "初始化PDF失败", err)
	}

	body := pdf.TextStyle{Size: bodySize, Leading: bodyLeading, SpaceAfter: blockSpacing, Color: colorBlack, Align: gopdf.Left}
	heading := pdf.TextStyle{Size: headingSize, Leading: headingLeading, SpaceAfter: blockSpacing, Color: colorBlack, Align: gopdf.Left}
	marker := pdf.TextStyle{Size: markerSize, Leading: markerSize + 4, SpaceAfter: markerSize + 5, Color: colorGray, Align: gopdf.Center}
	fallback := pdf.TextStyle{Size: fallbackSize, Leading: fallbackSize + 4, Indent: fallbackIndent, SpaceAfter: blockSpacing, Color: colorDarkBlue, Align: gopdf.Left}

	for _, b := range blocks {
		switch b.Kind {
		case KindPageMarker:
			builder.AddPage()
			err = builder.WriteParagraph(b.Text, marker)
		case KindText:
			style := body
			if b.Style == StyleHeading {
				style = heading
			}
			err = builder.WriteParagraph(b.Text, style)
		case KindFormulaFallback:
			err = builder.WriteParagraph(b.Text, fallback)
		case KindImage:
			if err = builder.WriteImage(b.Image, 0, maxFormulaH, blockSpacing); err != nil {
				err = builder.WriteParagraph(FallbackText(b.Source), fallback)
			}
		}
		if err != nil {
			return models.NewError(models.ErrOutput, "生成PDF失败", err)
		}
	}

	if err := builder.SaveToFile(outputPath); err != nil {
		return models.NewError(models.ErrOutput, "保存PDF文件失败", err)
	}
	return nil
}
