package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"ocr-translator/formula"
	"ocr-translator/models"
	"ocr-translator/ocr"
)

// ErrMissingTargetLanguage 未指定目标语言
var ErrMissingTargetLanguage = errors.New("未指定目标语言")

// Translator 批量翻译接口
//
// 返回结果与输入等长且顺序一致。targetLanguage 不能为空。
type Translator interface {
	TranslateBatch(ctx context.Context, batch []string, targetLanguage string) ([]string, error)
}

// StaticTranslator 函数适配器，用于离线场景与测试
type StaticTranslator func(ctx context.Context, batch []string, targetLanguage string) ([]string, error)

// TranslateBatch 实现 Translator
func (f StaticTranslator) TranslateBatch(ctx context.Context, batch []string, targetLanguage string) ([]string, error) {
	if targetLanguage == "" {
		return nil, ErrMissingTargetLanguage
	}
	return f(ctx, batch, targetLanguage)
}

// BatchTranslator 按句切分、分批调用翻译器，并保护公式片段
type BatchTranslator struct {
	Translator     Translator
	BatchSize      int
	TargetLanguage string
	Logger         logrus.FieldLogger
}

// NewBatchTranslator 创建批量翻译器
func NewBatchTranslator(t Translator, batchSize int, targetLanguage string) *BatchTranslator {
	if batchSize <= 0 {
		batchSize = 8
	}
	return &BatchTranslator{
		Translator:     t,
		BatchSize:      batchSize,
		TargetLanguage: targetLanguage,
		Logger:         logrus.StandardLogger(),
	}
}

// TranslateText 翻译一段不含公式的文本
//
// 按句切分后每 BatchSize 句调用一次翻译器，译文以单个空格拼接。
// 原文首尾空白保留，公式两侧的间隔因此不会丢失。
func (b *BatchTranslator) TranslateText(ctx context.Context, text string) (string, error) {
	if b.TargetLanguage == "" {
		return "", models.NewError(models.ErrTransform, "翻译失败", ErrMissingTargetLanguage)
	}

	sentences := formula.SplitSentences(text)
	if len(sentences) == 0 {
		return text, nil
	}

	size := b.BatchSize
	if size <= 0 {
		size = 8
	}

	translated := make([]string, 0, len(sentences))
	for start := 0; start < len(sentences); start += size {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := start + size
		if end > len(sentences) {
			end = len(sentences)
		}

		batch := sentences[start:end]
		out, err := b.Translator.TranslateBatch(ctx, batch, b.TargetLanguage)
		if err != nil {
			return "", models.NewError(models.ErrTransform, "翻译失败", err)
		}
		if len(out) != len(batch) {
			return "", models.NewError(models.ErrTransform,
				fmt.Sprintf("翻译结果数量不匹配: 输入 %d 句, 返回 %d 句", len(batch), len(out)), nil)
		}
		translated = append(translated, out...)
	}

	return leadingSpace(text) + strings.Join(translated, " ") + trailingSpace(text), nil
}

// TranslateContent 翻译段落内容，$$...$$ 公式原样保留
func (b *BatchTranslator) TranslateContent(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return content, nil
	}
	if !formula.HasFormula(content) {
		return b.TranslateText(ctx, content)
	}
	return formula.TransformE(content, func(part string) (string, error) {
		return b.TranslateText(ctx, part)
	})
}

// TranslateDocument 逐段翻译文档，任一段失败即中止
//
// progress 在每段完成后回调，参数为已完成段数与总段数。
func (b *BatchTranslator) TranslateDocument(ctx context.Context, doc *ocr.Document, progress func(done, total int)) error {
	total := doc.ParagraphCount()
	done := 0

	for pi := range doc.Pages {
		page := &doc.Pages[pi]
		for i := range page.Paragraphs {
			if err := ctx.Err(); err != nil {
				return err
			}

			para := &page.Paragraphs[i]
			if strings.TrimSpace(para.Content) != "" {
				translated, err := b.TranslateContent(ctx, para.Content)
				if err != nil {
					return fmt.Errorf("第 %d 页第 %d 段: %w", page.Index, i+1, err)
				}
				para.OriginalContent = para.Content
				para.Content = translated
				b.logger().WithFields(logrus.Fields{
					"page":      page.Index,
					"paragraph": i + 1,
					"chars":     len(para.OriginalContent),
				}).Debug("段落翻译完成")
			}

			done++
			if progress != nil {
				progress(done, total)
			}
		}
	}
	return nil
}

func (b *BatchTranslator) logger() logrus.FieldLogger {
	if b.Logger == nil {
		return logrus.StandardLogger()
	}
	return b.Logger
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeftFunc(s, unicode.IsSpace))]
}

func trailingSpace(s string) string {
	return s[len(strings.TrimRightFunc(s, unicode.IsSpace)):]
}
