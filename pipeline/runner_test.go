package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocr-translator/config"
	"ocr-translator/models"
	"ocr-translator/ocr"
	"ocr-translator/render"
	"ocr-translator/store"
	"ocr-translator/translator"
)

type fakeRasterizer struct {
	pages int
}

func (r fakeRasterizer) Rasterize(ctx context.Context, pdfPath string, dpi int) ([]image.Image, error) {
	images := make([]image.Image, r.pages)
	for i := range images {
		images[i] = image.NewRGBA(image.Rect(0, 0, 1000, 1000))
	}
	return images, nil
}

func layoutWithFormula(ctx context.Context, img image.Image) (ocr.RawResult, error) {
	return ocr.RawResult{
		"res": map[string]interface{}{
			"layout_det_res": map[string]interface{}{
				"boxes": []interface{}{
					map[string]interface{}{"label": "text", "coordinate": []interface{}{0.0, 0.0, 1000.0, 1000.0}},
				},
			},
			"formula_res_list": []interface{}{
				map[string]interface{}{"dt_polys": []interface{}{100.0, 300.0, 400.0, 350.0}, "rec_formula": "x^2"},
			},
		},
	}, nil
}

func textLines(ctx context.Context, img image.Image) (ocr.RawResult, error) {
	return ocr.RawResult{
		"dt_polys":  []interface{}{[]interface{}{100.0, 100.0, 900.0, 150.0}},
		"rec_texts": []interface{}{"see below."},
	}, nil
}

func upper(ctx context.Context, batch []string, targetLanguage string) ([]string, error) {
	out := make([]string, len(batch))
	for i, s := range batch {
		out[i] = strings.ToUpper(s)
	}
	return out, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type fixture struct {
	runner   *Runner
	services *Services
	tasks    *store.MemoryStore
}

func newFixture(t *testing.T, pages int, layout ocr.LayoutDetectorFunc, tr translator.Translator) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.TempDir = t.TempDir()
	cfg.ResultDir = t.TempDir()
	cfg.LogDir = ""
	cfg.Translator.CacheDir = ""

	logger := quietLogger()
	services := NewServices(cfg, logger)
	services.NewRasterizer = func() (ocr.Rasterizer, error) { return fakeRasterizer{pages: pages}, nil }
	services.NewLayoutDetector = func() (ocr.LayoutDetector, error) { return layout, nil }
	services.NewTextDetector = func() (ocr.TextDetector, error) { return ocr.TextDetectorFunc(textLines), nil }
	services.NewTranslator = func() (translator.Translator, error) { return tr, nil }
	services.NewRenderer = func() (render.FormulaRenderer, error) { return nil, nil }

	tasks := store.NewMemoryStore()
	tasks.Set(models.TranslateTask{
		ID:             "task-1",
		Filename:       "paper.pdf",
		TargetLanguage: "ko",
		Status:         models.StatusUploaded,
		CreatedAt:      time.Now(),
	})

	return &fixture{
		runner:   NewRunner(services, tasks, cfg, logger),
		services: services,
		tasks:    tasks,
	}
}

func (f *fixture) task(t *testing.T) models.TranslateTask {
	t.Helper()
	task, ok := f.tasks.Get("task-1")
	require.True(t, ok)
	return task
}

func TestProcessCompletes(t *testing.T) {
	f := newFixture(t, 2, layoutWithFormula, translator.StaticTranslator(upper))

	err := f.runner.Process(context.Background(), "task-1", "paper.pdf")
	require.NoError(t, err)

	task := f.task(t)
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.Equal(t, "翻译完成", task.Message)
	assert.Empty(t, task.DegradedPages)
	assert.Equal(t, f.runner.ResultPath("task-1"), task.ResultPath)
	assert.True(t, strings.HasSuffix(task.ResultPath, "task-1_translated.pdf"))
	require.NotNil(t, task.CompletedAt)

	info, err := os.Stat(task.ResultPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestProcessReportsDegradedPages(t *testing.T) {
	var calls int32
	layout := func(ctx context.Context, img image.Image) (ocr.RawResult, error) {
		if atomic.AddInt32(&calls, 1) == 2 {
			return nil, errors.New("model crashed")
		}
		return layoutWithFormula(ctx, img)
	}
	f := newFixture(t, 3, layout, translator.StaticTranslator(upper))

	require.NoError(t, f.runner.Process(context.Background(), "task-1", "paper.pdf"))

	task := f.task(t)
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Equal(t, []int{2}, task.DegradedPages)
	assert.Contains(t, task.Message, "1 页识别失败")
}

func TestProcessTranslatorFailureFailsTask(t *testing.T) {
	failing := translator.StaticTranslator(func(ctx context.Context, batch []string, lang string) ([]string, error) {
		return nil, errors.New("service unavailable")
	})
	f := newFixture(t, 1, layoutWithFormula, failing)

	err := f.runner.Process(context.Background(), "task-1", "paper.pdf")
	require.Error(t, err)
	assert.Equal(t, models.ErrTransform, models.CodeOf(err))

	task := f.task(t)
	assert.Equal(t, models.StatusFailed, task.Status)
	assert.Equal(t, "翻译失败", task.Message)
	assert.Contains(t, task.Error, "service unavailable")
	assert.Empty(t, task.ResultPath)
}

func TestProcessRecoversFromPanic(t *testing.T) {
	panicking := translator.StaticTranslator(func(ctx context.Context, batch []string, lang string) ([]string, error) {
		panic("boom")
	})
	f := newFixture(t, 1, layoutWithFormula, panicking)

	err := f.runner.Process(context.Background(), "task-1", "paper.pdf")
	require.Error(t, err)

	task := f.task(t)
	assert.Equal(t, models.StatusFailed, task.Status)
	assert.Contains(t, task.Error, "boom")
}

func TestProcessCancelledContext(t *testing.T) {
	f := newFixture(t, 1, layoutWithFormula, translator.StaticTranslator(upper))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.runner.Process(ctx, "task-1", "paper.pdf")
	assert.ErrorIs(t, err, ErrCancelled)

	task := f.task(t)
	assert.Equal(t, models.StatusFailed, task.Status)
	assert.Equal(t, "cancelled", task.Error)
}

// cancellingWriter 写出结果后取消任务
type cancellingWriter struct {
	cancel context.CancelFunc
}

func (w cancellingWriter) Write(blocks []render.Block, outputPath string) error {
	if err := os.WriteFile(outputPath, []byte("%PDF-1.4"), 0644); err != nil {
		return err
	}
	w.cancel()
	return nil
}

func TestProcessCancelledWhileWritingRemovesResult(t *testing.T) {
	f := newFixture(t, 1, layoutWithFormula, translator.StaticTranslator(upper))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.services.NewWriter = func(opts render.Options) (render.Writer, error) {
		return cancellingWriter{cancel: cancel}, nil
	}

	err := f.runner.Process(ctx, "task-1", "paper.pdf")
	assert.ErrorIs(t, err, ErrCancelled)

	task := f.task(t)
	assert.Equal(t, models.StatusFailed, task.Status)
	assert.Equal(t, "cancelled", task.Error)
	assert.Empty(t, task.ResultPath)
	assert.NoFileExists(t, f.runner.ResultPath("task-1"))
}

func TestProcessUnknownTask(t *testing.T) {
	f := newFixture(t, 1, layoutWithFormula, translator.StaticTranslator(upper))
	assert.Error(t, f.runner.Process(context.Background(), "missing", "paper.pdf"))
}

func TestProcessServiceLoadFailure(t *testing.T) {
	f := newFixture(t, 1, layoutWithFormula, translator.StaticTranslator(upper))
	f.services.NewTextDetector = func() (ocr.TextDetector, error) {
		return nil, errors.New("no model")
	}

	err := f.runner.Process(context.Background(), "task-1", "paper.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model")
	assert.Equal(t, models.StatusFailed, f.task(t).Status)
}

func TestSubmitAndCancel(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	blocking := translator.StaticTranslator(func(ctx context.Context, batch []string, lang string) ([]string, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	})
	f := newFixture(t, 1, layoutWithFormula, blocking)

	f.runner.Submit("task-1", "paper.pdf")

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("任务未开始翻译")
	}
	assert.Equal(t, models.StatusProcessing, f.task(t).Status)
	assert.GreaterOrEqual(t, f.task(t).Progress, progressTranslate)

	assert.True(t, f.runner.Cancel("task-1"))
	f.runner.Wait()

	task := f.task(t)
	assert.Equal(t, models.StatusFailed, task.Status)
	assert.Equal(t, "cancelled", task.Error)
	assert.False(t, f.runner.Cancel("task-1"))
}

func TestStageProgressStaysBelowNextCheckpoint(t *testing.T) {
	f := newFixture(t, 1, layoutWithFormula, translator.StaticTranslator(upper))

	f.runner.stageProgress("task-1", progressAssemble, progressTranslate, 1, 2)
	assert.Equal(t, 25, f.task(t).Progress)

	f.runner.stageProgress("task-1", progressAssemble, progressTranslate, 2, 2)
	assert.Equal(t, progressTranslate-1, f.task(t).Progress)

	// 进度不回退
	f.runner.stageProgress("task-1", progressAssemble, progressTranslate, 0, 2)
	assert.Equal(t, progressTranslate-1, f.task(t).Progress)
}

func TestServicesConstructOnce(t *testing.T) {
	s := NewServices(config.Default(), quietLogger())
	var built int32
	s.NewTranslator = func() (translator.Translator, error) {
		atomic.AddInt32(&built, 1)
		time.Sleep(10 * time.Millisecond)
		return translator.StaticTranslator(upper), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr, err := s.Translator()
			assert.NoError(t, err)
			assert.NotNil(t, tr)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&built))
}

func TestServicesCacheConstructionError(t *testing.T) {
	s := NewServices(config.Default(), quietLogger())
	var built int32
	s.NewLayoutDetector = func() (ocr.LayoutDetector, error) {
		atomic.AddInt32(&built, 1)
		return nil, errors.New("weights missing")
	}

	_, err1 := s.LayoutDetector()
	_, err2 := s.LayoutDetector()
	assert.EqualError(t, err1, "weights missing")
	assert.Equal(t, err1, err2)
	assert.Equal(t, int32(1), built)

	_, err := s.Adapter()
	assert.ErrorContains(t, err, "weights missing")
}

func TestServicesDefaultTranslatorRequiresURL(t *testing.T) {
	cfg := config.Default()
	cfg.Translator.APIURL = ""
	cfg.Translator.CacheDir = ""
	s := NewServices(cfg, quietLogger())

	tr, err := s.Translator()
	assert.Error(t, err)
	assert.Nil(t, tr)
}

func TestServicesForceRetranslateSkipsCache(t *testing.T) {
	cfg := config.Default()
	cfg.Translator.CacheDir = t.TempDir()

	warm, err := translator.NewCache(cfg.Translator.CacheDir)
	require.NoError(t, err)
	require.NoError(t, warm.Set("key", "cached"))

	client, err := newTranslatorClient(cfg, quietLogger())
	require.NoError(t, err)
	got, ok := client.Cache.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "cached", got)

	cfg.Translator.ForceRetranslate = true
	client, err = newTranslatorClient(cfg, quietLogger())
	require.NoError(t, err)
	_, ok = client.Cache.Get("key")
	assert.False(t, ok)
}

func TestServicesDisabledRenderer(t *testing.T) {
	cfg := config.Default()
	cfg.Renderer.Enabled = false
	s := NewServices(cfg, quietLogger())

	r, err := s.FormulaRenderer()
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestCleanupRemovesFinishedTasks(t *testing.T) {
	f := newFixture(t, 1, layoutWithFormula, translator.StaticTranslator(upper))
	f.runner.Config.UploadDir = t.TempDir()

	old := time.Now().Add(-48 * time.Hour)
	f.tasks.Set(models.TranslateTask{ID: "done", Status: models.StatusCompleted, CreatedAt: old})
	f.tasks.Set(models.TranslateTask{ID: "running", Status: models.StatusProcessing, CreatedAt: old})

	upload := f.runner.UploadPath("done")
	result := f.runner.ResultPath("done")
	require.NoError(t, os.WriteFile(upload, []byte("%PDF"), 0644))
	require.NoError(t, os.WriteFile(result, []byte("%PDF"), 0644))

	removed := f.runner.Cleanup(time.Now().Add(-24 * time.Hour))
	assert.Equal(t, 1, removed)

	_, ok := f.tasks.Get("done")
	assert.False(t, ok)
	_, ok = f.tasks.Get("running")
	assert.True(t, ok)
	_, ok = f.tasks.Get("task-1")
	assert.True(t, ok)

	assert.NoFileExists(t, upload)
	assert.NoFileExists(t, result)
}

func TestRunCleanupNonPositiveAgeKeepsTasks(t *testing.T) {
	f := newFixture(t, 1, layoutWithFormula, translator.StaticTranslator(upper))
	f.tasks.Set(models.TranslateTask{ID: "done", Status: models.StatusCompleted, CreatedAt: time.Now().Add(-time.Minute)})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	returned := make(chan struct{})
	go func() {
		f.runner.RunCleanup(ctx, time.Millisecond, 0)
		close(returned)
	}()

	select {
	case <-returned:
	case <-ctx.Done():
		t.Fatal("清理循环未立即返回")
	}
	_, ok := f.tasks.Get("done")
	assert.True(t, ok)
}
