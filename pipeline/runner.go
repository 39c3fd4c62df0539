package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ocr-translator/config"
	"ocr-translator/logging"
	"ocr-translator/models"
	"ocr-translator/ocr"
	"ocr-translator/pdf"
	"ocr-translator/render"
	"ocr-translator/store"
	"ocr-translator/translator"
)

// 各阶段的进度检查点
const (
	progressAssemble  = 10
	progressTranslate = 40
	progressRender    = 70
)

// ErrCancelled 任务被取消
var ErrCancelled = errors.New("cancelled")

// Runner 执行翻译任务并维护任务状态
type Runner struct {
	Services *Services
	Store    store.TaskStore
	Config   *config.Config
	Logger   *logrus.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner 创建任务执行器
func NewRunner(services *Services, tasks store.TaskStore, cfg *config.Config, logger *logrus.Logger) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Runner{
		Services: services,
		Store:    tasks,
		Config:   cfg,
		Logger:   logger,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// ResultPath 任务结果文件路径
func (r *Runner) ResultPath(taskID string) string {
	return filepath.Join(r.Config.ResultDir, taskID+"_translated.pdf")
}

// UploadPath 任务上传文件路径
func (r *Runner) UploadPath(taskID string) string {
	return filepath.Join(r.Config.UploadDir, taskID+".pdf")
}

// Cleanup 删除 before 之前创建且已结束的任务及其文件，返回删除数量
func (r *Runner) Cleanup(before time.Time) int {
	removed := 0
	for _, task := range r.Store.OlderThan(before) {
		if !task.Status.IsTerminal() {
			continue
		}
		for _, path := range []string{r.UploadPath(task.ID), r.ResultPath(task.ID)} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				r.Logger.WithError(err).WithField("path", path).Warn("删除临时文件失败")
			}
		}
		if r.Store.Delete(task.ID) {
			removed++
		}
	}
	if removed > 0 {
		r.Logger.WithField("count", removed).Info("已清理过期任务")
	}
	return removed
}

// RunCleanup 定期清理超过 maxAge 的任务，直到 ctx 结束
//
// maxAge 不为正时不做任何清理。
func (r *Runner) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	if maxAge <= 0 {
		r.Logger.WithField("maxAge", maxAge).Warn("清理时间无效，已停用定期清理")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Cleanup(now.Add(-maxAge))
		}
	}
}

// Submit 在后台执行任务
func (r *Runner) Submit(taskID, pdfPath string) {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	r.cancels[taskID] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.cancels, taskID)
			r.mu.Unlock()
			cancel()
		}()
		_ = r.Process(ctx, taskID, pdfPath)
	}()
}

// Cancel 取消运行中的任务，任务不在运行时返回 false
func (r *Runner) Cancel(taskID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[taskID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Shutdown 取消所有运行中的任务
func (r *Runner) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}

// Wait 等待所有后台任务结束
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Process 执行单个任务：识别 → 翻译 → 排版
//
// 无论成功、失败还是 panic，任务最终都处于终止状态。
func (r *Runner) Process(ctx context.Context, taskID, pdfPath string) (err error) {
	task, ok := r.Store.Get(taskID)
	if !ok {
		return fmt.Errorf("任务不存在: %s", taskID)
	}

	jobLog, logErr := logging.NewJobLogger(r.Logger, r.Config.LogDir, taskID, r.Config.JobLogConsole)
	if logErr != nil {
		r.Logger.WithError(logErr).Warn("创建任务日志失败，使用进程日志")
		jobLog, _ = logging.NewJobLogger(r.Logger, "", taskID, false)
	}
	defer jobLog.Close()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("处理过程出错: %v", rec)
			jobLog.Error("任务异常终止", err)
			r.fail(taskID, "处理失败", err)
		}
	}()

	targetLanguage := task.TargetLanguage
	if targetLanguage == "" {
		targetLanguage = r.Config.TargetLanguage
	}
	jobLog.Info("开始处理任务", logrus.Fields{"file": task.Filename, "target": targetLanguage})

	r.update(taskID, func(t *models.TranslateTask) {
		t.Status = models.StatusProcessing
		t.SetProgress(progressAssemble)
		t.Message = "正在识别页面"
	})

	title := task.Filename
	if info, err := pdf.Probe(pdfPath); err != nil {
		jobLog.Warn("读取 PDF 信息失败", logrus.Fields{"error": err.Error()})
	} else {
		jobLog.Info("源文件信息", logrus.Fields{"pages": info.Pages, "textPages": info.TextPages})
		if info.Title() != "" {
			title = info.Title()
		}
	}

	doc, err := r.assemble(ctx, taskID, pdfPath, jobLog)
	if err != nil {
		return r.abort(ctx, taskID, "页面识别失败", err, jobLog)
	}

	r.update(taskID, func(t *models.TranslateTask) {
		t.SetProgress(progressTranslate)
		t.Message = "正在翻译文本"
	})
	if err := r.translate(ctx, taskID, doc, targetLanguage, jobLog); err != nil {
		return r.abort(ctx, taskID, "翻译失败", err, jobLog)
	}

	r.update(taskID, func(t *models.TranslateTask) {
		t.SetProgress(progressRender)
		t.Message = "正在生成 PDF"
	})
	output := r.ResultPath(taskID)
	if err := r.render(ctx, doc, output, targetLanguage, title, jobLog); err != nil {
		return r.abort(ctx, taskID, "生成 PDF 失败", err, jobLog)
	}

	degraded := doc.DegradedPages()
	message := "翻译完成"
	if len(degraded) > 0 {
		message = fmt.Sprintf("翻译完成，%d 页识别失败: %s", len(degraded), joinInts(degraded))
	}
	r.update(taskID, func(t *models.TranslateTask) {
		t.DegradedPages = degraded
		t.Complete(output, message)
	})

	jobLog.LogOperationTiming("整体处理", time.Since(start))
	jobLog.Info("任务完成", logrus.Fields{"output": output, "degraded": len(degraded)})
	return nil
}

func (r *Runner) assemble(ctx context.Context, taskID, pdfPath string, jobLog *logging.JobLogger) (*ocr.Document, error) {
	rasterizer, err := r.Services.Rasterizer()
	if err != nil {
		return nil, err
	}
	adapter, err := r.Services.Adapter()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	assembler := ocr.NewAssembler(rasterizer, adapter, r.Config.Workers, r.Config.DPI, jobLog.Entry())
	doc, err := assembler.Assemble(ctx, pdfPath, func(done, total int) {
		r.stageProgress(taskID, progressAssemble, progressTranslate, done, total)
	})
	if err != nil {
		return nil, err
	}

	for _, page := range doc.Pages {
		jobLog.LogPageProcessing(page.Index, len(doc.Pages), len(page.Paragraphs), page.IsDegraded())
	}
	jobLog.LogOperationTiming("页面识别", time.Since(started))
	return doc, nil
}

func (r *Runner) translate(ctx context.Context, taskID string, doc *ocr.Document, targetLanguage string, jobLog *logging.JobLogger) error {
	client, err := r.Services.Translator()
	if err != nil {
		return err
	}

	started := time.Now()
	bt := translator.NewBatchTranslator(client, r.Config.BatchSize, targetLanguage)
	bt.Logger = jobLog.Entry()
	err = bt.TranslateDocument(ctx, doc, func(done, total int) {
		r.stageProgress(taskID, progressTranslate, progressRender, done, total)
	})
	if err != nil {
		return err
	}

	for _, page := range doc.Pages {
		for _, para := range page.Paragraphs {
			if para.OriginalContent != "" {
				jobLog.LogTranslation(page.Index, para.OriginalContent, para.Content)
			}
		}
	}
	jobLog.LogOperationTiming("文本翻译", time.Since(started))
	return nil
}

func (r *Runner) render(ctx context.Context, doc *ocr.Document, output, language, title string, jobLog *logging.JobLogger) error {
	renderer, err := r.Services.FormulaRenderer()
	if err != nil {
		jobLog.Warn("加载公式渲染器失败，公式将以源码输出", logrus.Fields{"error": err.Error()})
		renderer = nil
	}

	started := time.Now()
	builder := &render.Builder{Renderer: renderer, Logger: jobLog.Entry()}
	blocks := builder.Build(ctx, doc)
	if err := ctx.Err(); err != nil {
		return err
	}

	writer, err := r.Services.NewWriter(render.Options{
		FontPath: r.Config.FontPath,
		Language: language,
		Title:    title,
	})
	if err != nil {
		return models.NewError(models.ErrOutput, "创建输出引擎失败", err)
	}
	if err := writer.Write(blocks, output); err != nil {
		return err
	}
	// 写入期间被取消的任务不保留结果文件
	if err := ctx.Err(); err != nil {
		if rmErr := os.Remove(output); rmErr != nil && !os.IsNotExist(rmErr) {
			jobLog.Warn("删除已取消任务的结果文件失败", logrus.Fields{"error": rmErr.Error()})
		}
		return err
	}
	jobLog.LogOperationTiming("PDF 排版", time.Since(started))
	return nil
}

// stageProgress 将阶段内完成比例映射到 [from, to)
func (r *Runner) stageProgress(taskID string, from, to, done, total int) {
	if total <= 0 {
		return
	}
	p := from + (to-from)*done/total
	if p >= to {
		p = to - 1
	}
	r.update(taskID, func(t *models.TranslateTask) {
		if p > t.Progress {
			t.SetProgress(p)
		}
	})
}

func (r *Runner) abort(ctx context.Context, taskID, message string, err error, jobLog *logging.JobLogger) error {
	if ctx.Err() != nil {
		err = ErrCancelled
		message = "任务已取消"
	}
	jobLog.Error(message, err)
	r.fail(taskID, message, err)
	return err
}

func (r *Runner) fail(taskID, message string, err error) {
	r.update(taskID, func(t *models.TranslateTask) {
		t.Fail(message, err)
	})
}

func (r *Runner) update(taskID string, fn func(*models.TranslateTask)) {
	if _, ok := r.Store.Update(taskID, fn); !ok {
		r.Logger.WithField("task", taskID).Warn("任务已被删除，忽略状态更新")
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
