package main

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"ocr-translator/config"
	"ocr-translator/logging"
	"ocr-translator/models"
	"ocr-translator/ocr"
	"ocr-translator/ocr/tesseract"
	"ocr-translator/pdf"
	"ocr-translator/pipeline"
	"ocr-translator/store"
	"ocr-translator/translator"
)

// 命令行演示：不启动 HTTP 服务，直接对本地 PDF 执行完整流程
func main() {
	configPath := flag.String("config", "", "配置文件路径")
	inputPath := flag.String("in", "./sample.pdf", "输入 PDF")
	outputDir := flag.String("out", "./output", "输出目录")
	target := flag.String("lang", "", "目标语言，默认使用配置")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ 加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg.ResultDir = *outputDir
	if *target != "" {
		cfg.TargetLanguage = *target
	}
	if err := cfg.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	if err := pdf.Validate(*inputPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	showFileInfo(*inputPath)
	fmt.Printf("🌐 目标语言: %s (%s)\n\n", translator.DisplayName(cfg.TargetLanguage), cfg.TargetLanguage)

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	services := pipeline.NewServices(cfg, logger)
	if cfg.Detector.TextBackend == "tesseract" {
		services.NewTextDetector = func() (ocr.TextDetector, error) {
			return tesseract.New(cfg.Detector.TesseractLanguages, cfg.DPI), nil
		}
	}

	tasks := store.NewMemoryStore()
	runner := pipeline.NewRunner(services, tasks, cfg, logger)

	taskID := fmt.Sprintf("demo_%s", time.Now().Format("20060102_150405"))
	tasks.Set(models.TranslateTask{
		ID:             taskID,
		Filename:       filepath.Base(*inputPath),
		TargetLanguage: cfg.TargetLanguage,
		Status:         models.StatusUploaded,
		CreatedAt:      time.Now(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- runner.Process(ctx, taskID, *inputPath)
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			task, _ := tasks.Get(taskID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\n❌ %s: %v\n", task.Message, err)
				os.Exit(1)
			}
			fmt.Printf("\n✅ %s\n📄 输出文件: %s\n", task.Message, task.ResultPath)
			if sum, err := calculateFileMD5(task.ResultPath); err == nil {
				fmt.Printf("🔐 输出文件MD5: %s\n", sum)
			}
			return
		case <-ticker.C:
			if task, ok := tasks.Get(taskID); ok {
				fmt.Printf("\r⏳ %3d%% %s", task.Progress, task.Message)
			}
		}
	}
}

func showFileInfo(path string) {
	fmt.Printf("📄 输入文件: %s\n", path)
	if sum, err := calculateFileMD5(path); err == nil {
		fmt.Printf("🔐 输入文件MD5: %s\n", sum)
	}

	info, err := pdf.Probe(path)
	if err != nil {
		fmt.Printf("⚠️  读取 PDF 信息失败: %v\n", err)
		return
	}
	fmt.Printf("📊 页数: %d，含文本层页数: %d\n", info.Pages, info.TextPages)
	if title := info.Title(); title != "" {
		fmt.Printf("📝 标题: %s\n", title)
	}
}

func calculateFileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
