package render

import (
	"fmt"
	"strings"
)

// Writer 将排版块写出为 PDF
type Writer interface {
	Write(blocks []Block, outputPath string) error
}

// Options 输出配置
type Options struct {
	// FontPath 指定 TTF 字体，为空时按 Language 查找系统字体
	FontPath string
	Language string
	Title    string
}

// 排版参数，单位 pt
const (
	pageMargin     = 72.0
	bottomMargin   = 18.0
	bodySize       = 11.0
	bodyLeading    = 16.0
	headingSize    = 14.0
	headingLeading = 20.0
	markerSize     = 9.0
	fallbackSize   = 10.0
	fallbackIndent = 20.0
	blockSpacing   = 10.0
	maxFormulaH    = 144.0
)

var (
	colorBlack    = [3]uint8{0, 0, 0}
	colorGray     = [3]uint8{128, 128, 128}
	colorDarkBlue = [3]uint8{0, 0, 139}
)

// NewWriter 按名称创建输出引擎：gofpdf（默认）或 gopdf
func NewWriter(name string, opts Options) (Writer, error) {
	switch strings.ToLower(name) {
	case "", "gofpdf":
		return &GofpdfWriter{Options: opts}, nil
	case "gopdf":
		return &GopdfWriter{Options: opts}, nil
	default:
		return nil, fmt.Errorf("不支持的输出引擎: %s", name)
	}
}
