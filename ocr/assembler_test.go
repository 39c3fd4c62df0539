package ocr

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocr-translator/models"
)

type fakeRasterizer struct {
	pages []image.Image
	err   error
}

func (r fakeRasterizer) Rasterize(ctx context.Context, pdfPath string, dpi int) ([]image.Image, error) {
	return r.pages, r.err
}

// pagedImage 记录页码的空白图像，宽度即页码
func pagedImage(page int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, page, 10))
}

func pageOf(img image.Image) int {
	return img.Bounds().Dx()
}

type safeLayout struct {
	fn LayoutDetectorFunc
}

func (s safeLayout) Detect(ctx context.Context, img image.Image) (RawResult, error) {
	return s.fn(ctx, img)
}

func (s safeLayout) PoolSafe() bool { return true }

// pageLayout 每页一个文本区域
func pageLayout(ctx context.Context, img image.Image) (RawResult, error) {
	return RawResult{
		"layout_det_res": map[string]interface{}{
			"boxes": []interface{}{
				map[string]interface{}{"label": "text", "coordinate": []interface{}{0.0, 0.0, 1000.0, 1000.0}},
			},
		},
	}, nil
}

// pageText 文本内容为页码对应的字母
func pageText(ctx context.Context, img image.Image) (RawResult, error) {
	return RawResult{
		"dt_polys":  []interface{}{[]interface{}{0.0, 0.0, 10.0, 10.0}},
		"rec_texts": []interface{}{string(rune('A' + pageOf(img) - 1))},
	}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestAssembleSequential(t *testing.T) {
	pages := []image.Image{pagedImage(1), pagedImage(2), pagedImage(3)}
	adapter := NewAdapter(LayoutDetectorFunc(pageLayout), TextDetectorFunc(pageText))
	asm := NewAssembler(fakeRasterizer{pages: pages}, adapter, 1, 144, quietLogger())

	var calls []int
	doc, err := asm.Assemble(context.Background(), "in.pdf", func(done, total int) {
		calls = append(calls, done)
		assert.Equal(t, 3, total)
	})
	require.NoError(t, err)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, []int{1, 2, 3}, calls)

	for i, p := range doc.Pages {
		assert.Equal(t, i+1, p.Index)
		require.Len(t, p.Paragraphs, 1)
		assert.Equal(t, string(rune('A'+i)), p.Paragraphs[0].Content)
	}
	assert.Empty(t, doc.DegradedPages())
	assert.Equal(t, "in.pdf", doc.Source)
}

func TestAssemblePanickingPageDegrades(t *testing.T) {
	pages := []image.Image{pagedImage(1), pagedImage(2), pagedImage(3)}
	text := TextDetectorFunc(func(ctx context.Context, img image.Image) (RawResult, error) {
		if pageOf(img) == 2 {
			panic("detector crashed")
		}
		return pageText(ctx, img)
	})
	asm := NewAssembler(fakeRasterizer{pages: pages}, NewAdapter(LayoutDetectorFunc(pageLayout), text), 1, 144, quietLogger())

	doc, err := asm.Assemble(context.Background(), "in.pdf", nil)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 3)

	assert.Equal(t, 2, doc.Pages[1].Index)
	assert.Empty(t, doc.Pages[1].Paragraphs)
	assert.NotNil(t, doc.Pages[1].Paragraphs)
	assert.True(t, doc.Pages[1].IsDegraded())
	assert.Equal(t, []int{2}, doc.DegradedPages())

	errs := doc.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, models.ErrDetectionDegraded, models.CodeOf(errs[0]))
	assert.Len(t, doc.Pages[0].Paragraphs, 1)
	assert.Len(t, doc.Pages[2].Paragraphs, 1)
}

func TestAssembleDetectorErrorDegrades(t *testing.T) {
	layout := LayoutDetectorFunc(func(ctx context.Context, img image.Image) (RawResult, error) {
		if pageOf(img) == 1 {
			return nil, errors.New("timeout")
		}
		return pageLayout(ctx, img)
	})
	asm := NewAssembler(fakeRasterizer{pages: []image.Image{pagedImage(1), pagedImage(2)}},
		NewAdapter(layout, TextDetectorFunc(pageText)), 1, 144, quietLogger())

	doc, err := asm.Assemble(context.Background(), "in.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, doc.DegradedPages())
	assert.Len(t, doc.Pages[1].Paragraphs, 1)
}

func TestAssembleRasterizerFailure(t *testing.T) {
	asm := NewAssembler(fakeRasterizer{err: errors.New("pdftoppm missing")},
		NewAdapter(LayoutDetectorFunc(pageLayout), TextDetectorFunc(pageText)), 1, 144, quietLogger())

	doc, err := asm.Assemble(context.Background(), "in.pdf", nil)
	assert.Error(t, err)
	assert.Nil(t, doc)
}

func TestAssembleCancelledAtPageBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var processed int32
	text := TextDetectorFunc(func(c context.Context, img image.Image) (RawResult, error) {
		if atomic.AddInt32(&processed, 1) == 1 {
			cancel()
		}
		return pageText(c, img)
	})
	pages := []image.Image{pagedImage(1), pagedImage(2), pagedImage(3)}
	asm := NewAssembler(fakeRasterizer{pages: pages}, NewAdapter(LayoutDetectorFunc(pageLayout), text), 1, 144, quietLogger())

	doc, err := asm.Assemble(ctx, "in.pdf", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, doc)
	assert.Equal(t, int32(1), atomic.LoadInt32(&processed))
}

func TestAssembleParallelPreservesPageOrder(t *testing.T) {
	const n = 12
	pages := make([]image.Image, n)
	for i := range pages {
		pages[i] = pagedImage(i + 1)
	}

	var inflight, peak int32
	layout := safeLayout{fn: func(ctx context.Context, img image.Image) (RawResult, error) {
		cur := atomic.AddInt32(&inflight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		// 后面的页先完成
		time.Sleep(time.Duration(n-pageOf(img)) * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return pageLayout(ctx, img)
	}}
	text := safeLayout{fn: LayoutDetectorFunc(pageText)}

	asm := NewAssembler(fakeRasterizer{pages: pages}, NewAdapter(layout, text), 4, 144, quietLogger())

	var last int32
	doc, err := asm.Assemble(context.Background(), "in.pdf", func(done, total int) {
		atomic.StoreInt32(&last, int32(done))
	})
	require.NoError(t, err)
	require.Len(t, doc.Pages, n)
	for i, p := range doc.Pages {
		assert.Equal(t, i+1, p.Index)
		require.Len(t, p.Paragraphs, 1)
		assert.Equal(t, string(rune('A'+i)), p.Paragraphs[0].Content)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
	assert.Equal(t, int32(n), atomic.LoadInt32(&last))
}

func TestAssembleUnsafeAdapterRunsSequentially(t *testing.T) {
	var inflight, peak int32
	layout := LayoutDetectorFunc(func(ctx context.Context, img image.Image) (RawResult, error) {
		cur := atomic.AddInt32(&inflight, 1)
		if cur > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, cur)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return pageLayout(ctx, img)
	})
	pages := []image.Image{pagedImage(1), pagedImage(2), pagedImage(3), pagedImage(4)}
	asm := NewAssembler(fakeRasterizer{pages: pages}, NewAdapter(layout, TextDetectorFunc(pageText)), 8, 144, quietLogger())

	_, err := asm.Assemble(context.Background(), "in.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}
