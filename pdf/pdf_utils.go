package pdf

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"strings"

	"github.com/signintech/gopdf"
)

// PDFBuilder 基于 gopdf 的流式排版构建器，内容自上而下排列并自动换页
type PDFBuilder struct {
	pdf        *gopdf.GoPdf
	fontHelper *UniFontHelper
	config     PDFConfig
	y          float64
	started    bool
}

// PDFConfig PDF配置，单位为 pt
type PDFConfig struct {
	PageSize *gopdf.Rect
	Margins  Margins
	FontPath string
	Language string
}

// Margins 页边距
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// TextStyle 文本样式
type TextStyle struct {
	Size       float64
	Leading    float64
	Indent     float64
	SpaceAfter float64
	Color      [3]uint8
	Align      int
}

// DefaultPDFConfig A4、四边 72pt 边距
func DefaultPDFConfig() PDFConfig {
	return PDFConfig{
		PageSize: gopdf.PageSizeA4,
		Margins:  Margins{Top: 72, Right: 72, Bottom: 72, Left: 72},
	}
}

// NewPDFBuilder 创建构建器并加载字体
func NewPDFBuilder(cfg PDFConfig) (*PDFBuilder, error) {
	if cfg.PageSize == nil {
		cfg.PageSize = gopdf.PageSizeA4
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *cfg.PageSize, Unit: gopdf.UnitPT})

	helper := NewUniFontHelper(pdf)
	if err := helper.Load(cfg.FontPath, cfg.Language); err != nil {
		return nil, err
	}

	return &PDFBuilder{pdf: pdf, fontHelper: helper, config: cfg}, nil
}

// AddPage 新起一页
func (pb *PDFBuilder) AddPage() {
	pb.pdf.AddPage()
	pb.y = pb.config.Margins.Top
	pb.started = true
}

func (pb *PDFBuilder) contentWidth() float64 {
	return pb.config.PageSize.W - pb.config.Margins.Left - pb.config.Margins.Right
}

// ensureSpace 剩余高度不足 h 时换页
func (pb *PDFBuilder) ensureSpace(h float64) {
	if !pb.started || pb.y+h > pb.config.PageSize.H-pb.config.Margins.Bottom {
		pb.AddPage()
	}
}

// WriteParagraph 写入自动换行的段落
func (pb *PDFBuilder) WriteParagraph(text string, style TextStyle) error {
	if err := pb.fontHelper.SetSize(style.Size); err != nil {
		return err
	}
	leading := style.Leading
	if leading <= 0 {
		leading = style.Size * 1.4
	}
	pb.pdf.SetTextColor(style.Color[0], style.Color[1], style.Color[2])

	width := pb.contentWidth() - 2*style.Indent
	for _, raw := range strings.Split(text, "\n") {
		// SplitText 不接受空字符串
		if strings.TrimSpace(raw) == "" {
			pb.ensureSpace(leading)
			pb.y += leading
			continue
		}
		lines, err := pb.pdf.SplitText(raw, width)
		if err != nil {
			return fmt.Errorf("文本换行失败: %w", err)
		}
		for _, line := range lines {
			pb.ensureSpace(leading)
			pb.pdf.SetXY(pb.config.Margins.Left+style.Indent, pb.y)
			rect := &gopdf.Rect{W: width, H: leading}
			if err := pb.pdf.CellWithOption(rect, line, gopdf.CellOption{Align: style.Align | gopdf.Middle}); err != nil {
				return err
			}
			pb.y += leading
		}
	}
	pb.y += style.SpaceAfter
	return nil
}

// WriteImage 写入 PNG 图片并居中，按 300dpi 计算原始尺寸后等比缩小到 maxW × maxH 以内
func (pb *PDFBuilder) WriteImage(png []byte, maxW, maxH, spaceAfter float64) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return fmt.Errorf("读取图片尺寸失败: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("图片尺寸为零")
	}

	w := float64(cfg.Width) * 72 / 300
	h := float64(cfg.Height) * 72 / 300
	if limit := pb.contentWidth(); maxW <= 0 || maxW > limit {
		maxW = limit
	}
	if w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if maxH > 0 && h > maxH {
		w = w * maxH / h
		h = maxH
	}

	holder, err := gopdf.ImageHolderByBytes(png)
	if err != nil {
		return err
	}

	pb.ensureSpace(h)
	x := pb.config.Margins.Left + (pb.contentWidth()-w)/2
	if err := pb.pdf.ImageByHolder(holder, x, pb.y, &gopdf.Rect{W: w, H: h}); err != nil {
		return err
	}
	pb.y += h + spaceAfter
	return nil
}

// SaveToFile 保存到文件
func (pb *PDFBuilder) SaveToFile(filename string) error {
	if !pb.started {
		pb.AddPage()
	}
	return pb.pdf.WritePdf(filename)
}
