package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ocr-translator/config"
	"ocr-translator/handlers"
	"ocr-translator/logging"
	"ocr-translator/middleware"
	"ocr-translator/ocr"
	"ocr-translator/ocr/tesseract"
	"ocr-translator/pipeline"
	"ocr-translator/store"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err := cfg.EnsureDirs(); err != nil {
		logger.WithError(err).Fatal("初始化目录失败")
	}

	services := pipeline.NewServices(cfg, logger)
	if cfg.Detector.TextBackend == "tesseract" {
		services.NewTextDetector = func() (ocr.TextDetector, error) {
			return tesseract.New(cfg.Detector.TesseractLanguages, cfg.DPI), nil
		}
	}

	tasks := store.NewMemoryStore()
	runner := pipeline.NewRunner(services, tasks, cfg, logger)
	sessions := middleware.NewSessionManager(middleware.SessionTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runner.RunCleanup(ctx, time.Hour, cfg.CleanupAfter())
	go sessions.RunCleanup(ctx, time.Hour)

	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSize

	r.Use(middleware.CORS(), middleware.SessionMiddleware(sessions))
	handlers.NewHandler(cfg, tasks, runner, logger).Register(r)

	mountFrontend(r, cfg, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":   cfg.Port,
			"target": cfg.TargetLanguage,
			"writer": cfg.Writer,
		}).Info("OCR 翻译服务启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("服务启动失败")
		}
	}()

	<-ctx.Done()
	logger.Info("正在关闭服务")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP 服务关闭超时")
	}

	runner.Shutdown()
	runner.Wait()
	logger.Info("服务已关闭")
}

// mountFrontend 开发模式代理到前端开发服务器，否则在目录存在时挂载 /static
func mountFrontend(r *gin.Engine, cfg *config.Config, logger *logrus.Logger) {
	if cfg.DevMode {
		target, _ := url.Parse("http://localhost:3000")
		proxy := httputil.NewSingleHostReverseProxy(target)
		logger.Info("开发模式：代理前端请求到 http://localhost:3000")
		r.NoRoute(func(c *gin.Context) {
			proxy.ServeHTTP(c.Writer, c.Request)
		})
		return
	}

	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		r.Static("/static", cfg.StaticDir)
		r.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusFound, "/static/")
		})
		logger.WithField("dir", cfg.StaticDir).Info("已挂载前端静态文件")
		return
	}
	logger.WithField("dir", cfg.StaticDir).Warn("前端目录不存在，仅提供 API")
}

// requestLogger 使用 logrus 记录请求
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("请求完成")
	}
}
