package ocr

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ocr-translator/models"
)

// ProgressFunc 页面完成回调，done 为已完成页数
type ProgressFunc func(done, total int)

// Assembler 逐页执行 栅格化 → 识别 → 对齐，组装为 Document
type Assembler struct {
	Rasterizer Rasterizer
	Adapter    *Adapter
	Workers    int
	DPI        int
	Logger     logrus.FieldLogger
}

// NewAssembler 创建文档组装器
func NewAssembler(rasterizer Rasterizer, adapter *Adapter, workers, dpi int, logger logrus.FieldLogger) *Assembler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Assembler{
		Rasterizer: rasterizer,
		Adapter:    adapter,
		Workers:    workers,
		DPI:        dpi,
		Logger:     logger,
	}
}

// Assemble 处理整份 PDF
//
// 单页失败转为空的降级页，页码保留；栅格化失败或取消时返回错误，不返回部分文档。
func (a *Assembler) Assemble(ctx context.Context, pdfPath string, progress ProgressFunc) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	images, err := a.Rasterizer.Rasterize(ctx, pdfPath, a.DPI)
	if err != nil {
		return nil, models.NewError(models.ErrAssembly, "PDF 栅格化失败", err)
	}

	total := len(images)
	a.logger().WithFields(logrus.Fields{"pages": total, "workers": a.workers()}).Info("开始识别文档")

	pages := make([]Page, total)
	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		if progress == nil {
			return
		}
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		progress(n, total)
	}

	if a.workers() <= 1 {
		for i, img := range images {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			pages[i] = a.processPage(ctx, i+1, img)
			images[i] = nil
			report()
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.workers())
		for i := range images {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				pages[i] = a.processPage(gctx, i+1, images[i])
				images[i] = nil
				report()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	doc := &Document{Source: pdfPath, Pages: pages}
	for _, perr := range doc.Errors() {
		a.logger().WithError(perr).Warn("页面降级")
	}
	return doc, nil
}

// processPage 单页处理，panic 与检测失败都收敛为降级页
func (a *Assembler) processPage(ctx context.Context, index int, img image.Image) (page Page) {
	page = Page{Index: index, Paragraphs: []Paragraph{}}

	defer func() {
		if r := recover(); r != nil {
			page = Page{
				Index:      index,
				Paragraphs: []Paragraph{},
				Degraded:   &Degradation{Reason: "页面处理异常", Err: fmt.Errorf("panic: %v", r)},
			}
		}
	}()

	rec := a.Adapter.Recognize(ctx, index, img)
	for _, w := range rec.Warnings {
		a.logger().WithError(w).Debug("丢弃畸形检测结果")
	}
	if rec.Degraded != nil {
		page.Degraded = rec.Degraded
		return page
	}

	page.Paragraphs = Align(rec.Regions, rec.Texts, rec.Formulas)
	a.logger().WithFields(logrus.Fields{
		"page":       index,
		"paragraphs": len(page.Paragraphs),
		"texts":      len(rec.Texts),
		"formulas":   len(rec.Formulas),
	}).Debug("页面识别完成")
	return page
}

func (a *Assembler) workers() int {
	if a.Workers <= 1 || a.Adapter == nil || !a.Adapter.PoolSafe() {
		return 1
	}
	return a.Workers
}

func (a *Assembler) logger() logrus.FieldLogger {
	if a.Logger == nil {
		return logrus.StandardLogger()
	}
	return a.Logger
}
