package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"ocr-translator/formula"
	"ocr-translator/models"
	"ocr-translator/ocr"
)

// BlockKind 排版块类型
type BlockKind int

const (
	KindPageMarker BlockKind = iota
	KindText
	KindImage
	KindFormulaFallback
)

func (k BlockKind) String() string {
	switch k {
	case KindPageMarker:
		return "page_marker"
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindFormulaFallback:
		return "formula_fallback"
	default:
		return fmt.Sprintf("BlockKind(%d)", int(k))
	}
}

// Style 文本样式
type Style int

const (
	StyleBody Style = iota
	StyleHeading
)

// Block 与排版引擎无关的输出单元
type Block struct {
	Kind  BlockKind
	Page  int
	Text  string
	Style Style
	// Image 公式渲染得到的 PNG
	Image []byte
	// Source 公式 LaTeX 源码
	Source string
}

// FormulaRenderer 将 LaTeX 渲染为 PNG
type FormulaRenderer interface {
	Render(ctx context.Context, latex string) ([]byte, error)
}

// FormulaRendererFunc 函数适配器
type FormulaRendererFunc func(ctx context.Context, latex string) ([]byte, error)

// Render 实现 FormulaRenderer
func (f FormulaRendererFunc) Render(ctx context.Context, latex string) ([]byte, error) {
	return f(ctx, latex)
}

// PageMarkerText 页码标记文本
func PageMarkerText(page int) string {
	return fmt.Sprintf("- Page %d -", page)
}

// FallbackText 公式渲染失败时显示的源码
func FallbackText(latex string) string {
	return "[Formula: " + latex + "]"
}

// Builder 将文档转换为排版块
type Builder struct {
	Renderer FormulaRenderer
	Logger   logrus.FieldLogger
}

// Build 使用给定渲染器生成排版块，renderer 为 nil 时公式全部回退为源码
func Build(ctx context.Context, doc *ocr.Document, renderer FormulaRenderer) []Block {
	b := &Builder{Renderer: renderer}
	return b.Build(ctx, doc)
}

// Build 每页先输出页码标记，再按段落输出文本与公式
func (b *Builder) Build(ctx context.Context, doc *ocr.Document) []Block {
	var blocks []Block
	for _, page := range doc.Pages {
		blocks = append(blocks, Block{Kind: KindPageMarker, Page: page.Index, Text: PageMarkerText(page.Index)})

		for _, para := range page.Paragraphs {
			if strings.TrimSpace(para.Content) == "" {
				continue
			}
			style := StyleBody
			if para.Type == ocr.LabelParagraphTitle {
				style = StyleHeading
			}

			// 文本按原样输出，公式替换为图片或源码
			formula.Each(para.Content,
				func(text string) {
					blocks = append(blocks, Block{Kind: KindText, Page: page.Index, Text: strings.TrimSpace(text), Style: style})
				},
				func(span string) {
					blocks = append(blocks, b.formulaBlock(ctx, page.Index, formula.Body(span)))
				},
			)
		}
	}
	return blocks
}

func (b *Builder) formulaBlock(ctx context.Context, page int, latex string) Block {
	png, err := b.render(ctx, latex)
	if err == nil && len(png) > 0 {
		return Block{Kind: KindImage, Page: page, Image: png, Source: latex}
	}
	if err != nil {
		b.logger().WithError(models.NewPageError(models.ErrRenderFallback, page, "公式渲染失败，使用源码", err)).
			Debug("公式回退")
	}
	return Block{Kind: KindFormulaFallback, Page: page, Text: FallbackText(latex), Source: latex}
}

// render 渲染器的错误与 panic 都转为错误返回
func (b *Builder) render(ctx context.Context, latex string) (png []byte, err error) {
	if b.Renderer == nil {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			png, err = nil, fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return b.Renderer.Render(ctx, latex)
}

func (b *Builder) logger() logrus.FieldLogger {
	if b.Logger == nil {
		return logrus.StandardLogger()
	}
	return b.Logger
}
