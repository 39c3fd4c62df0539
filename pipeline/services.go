package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ocr-translator/config"
	"ocr-translator/ocr"
	"ocr-translator/render"
	"ocr-translator/translator"
)

// lazy 只构造一次的句柄，构造错误同样被缓存
type lazy[T any] struct {
	once  sync.Once
	value T
	err   error
}

func (l *lazy[T]) get(build func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.value, l.err = build()
	})
	return l.value, l.err
}

// Services 各任务共享的模型与外部工具句柄
//
// 句柄在首次使用时构造；并发的首次调用会等待同一次构造。
// New* 字段为构造函数，可在首次使用前替换。
type Services struct {
	Config *config.Config
	Logger logrus.FieldLogger

	NewLayoutDetector func() (ocr.LayoutDetector, error)
	NewTextDetector   func() (ocr.TextDetector, error)
	NewTranslator     func() (translator.Translator, error)
	NewRenderer       func() (render.FormulaRenderer, error)
	NewRasterizer     func() (ocr.Rasterizer, error)
	// NewWriter 每个任务创建一次，不缓存
	NewWriter func(opts render.Options) (render.Writer, error)

	layout     lazy[ocr.LayoutDetector]
	text       lazy[ocr.TextDetector]
	client     lazy[translator.Translator]
	renderer   lazy[render.FormulaRenderer]
	rasterizer lazy[ocr.Rasterizer]
}

// NewServices 按配置创建服务句柄集合
func NewServices(cfg *config.Config, logger logrus.FieldLogger) *Services {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Services{Config: cfg, Logger: logger}

	s.NewLayoutDetector = func() (ocr.LayoutDetector, error) {
		d := cfg.Detector
		if d.LayoutURL == "" {
			return nil, fmt.Errorf("未配置版面检测服务地址")
		}
		return ocr.NewHTTPDetector(d.LayoutURL, config.Seconds(d.TimeoutSec, 2*time.Minute), d.PoolSafe), nil
	}
	s.NewTextDetector = func() (ocr.TextDetector, error) {
		d := cfg.Detector
		if d.TextBackend != "" && d.TextBackend != "http" {
			return nil, fmt.Errorf("文本识别后端 %s 未注册", d.TextBackend)
		}
		if d.TextURL == "" {
			return nil, fmt.Errorf("未配置文本识别服务地址")
		}
		return ocr.NewHTTPDetector(d.TextURL, config.Seconds(d.TimeoutSec, 2*time.Minute), d.PoolSafe), nil
	}
	s.NewTranslator = func() (translator.Translator, error) {
		client, err := newTranslatorClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	s.NewRenderer = func() (render.FormulaRenderer, error) {
		r := cfg.Renderer
		if !r.Enabled {
			return nil, nil
		}
		renderer := render.NewLatexRenderer(r.Pdflatex, r.Pdftoppm, config.Seconds(r.TimeoutSec, 10*time.Second))
		renderer.TempDir = cfg.TempDir
		if !renderer.Available() {
			logger.WithField("pdflatex", r.Pdflatex).Warn("未找到 LaTeX 工具链，公式将以源码输出")
			return nil, nil
		}
		return renderer, nil
	}
	s.NewRasterizer = func() (ocr.Rasterizer, error) {
		return ocr.NewPopplerRasterizer(cfg.Renderer.Pdftoppm, cfg.TempDir), nil
	}
	s.NewWriter = func(opts render.Options) (render.Writer, error) {
		return render.NewWriter(cfg.Writer, opts)
	}
	return s
}

func newTranslatorClient(cfg *config.Config, logger logrus.FieldLogger) (*translator.Client, error) {
	tc := cfg.Translator

	var cache *translator.Cache
	if tc.CacheDir != "" {
		c, err := translator.NewCache(tc.CacheDir)
		if err != nil {
			logger.WithError(err).Warn("创建翻译缓存失败，将不使用缓存")
		} else {
			cache = c
			if tc.ForceRetranslate {
				cache.DisableCache()
				logger.Info("已禁用翻译缓存")
			}
		}
	}

	client, err := translator.NewClient(translator.ProviderConfig{
		Type:           translator.ProviderType(tc.Provider),
		APIKey:         tc.APIKey,
		APIURL:         tc.APIURL,
		Model:          tc.Model,
		Temperature:    tc.Temperature,
		MaxTokens:      tc.MaxTokens,
		SourceLanguage: cfg.SourceLanguage,
		Timeout:        config.Seconds(tc.TimeoutSec, time.Minute),
		Extra:          tc.Extra,
	}, cache)
	if err != nil {
		return nil, fmt.Errorf("创建翻译客户端失败: %w", err)
	}
	client.WithRetry(tc.RetryTimes, config.Seconds(tc.RetryIntervalSec, 2*time.Second))
	client.Logger = logger
	logger.WithFields(logrus.Fields{"provider": tc.Provider, "model": tc.Model}).Info("翻译客户端已加载")
	return client, nil
}

// LayoutDetector 版面与公式检测器
func (s *Services) LayoutDetector() (ocr.LayoutDetector, error) {
	return s.layout.get(s.NewLayoutDetector)
}

// TextDetector 文本行检测器
func (s *Services) TextDetector() (ocr.TextDetector, error) {
	return s.text.get(s.NewTextDetector)
}

// Translator 翻译客户端
func (s *Services) Translator() (translator.Translator, error) {
	return s.client.get(s.NewTranslator)
}

// FormulaRenderer 公式渲染器，未启用或工具缺失时返回 nil
func (s *Services) FormulaRenderer() (render.FormulaRenderer, error) {
	return s.renderer.get(s.NewRenderer)
}

// Rasterizer PDF 栅格化器
func (s *Services) Rasterizer() (ocr.Rasterizer, error) {
	return s.rasterizer.get(s.NewRasterizer)
}

// Adapter 组合检测器为识别适配器
func (s *Services) Adapter() (*ocr.Adapter, error) {
	layout, err := s.LayoutDetector()
	if err != nil {
		return nil, fmt.Errorf("加载版面检测器失败: %w", err)
	}
	text, err := s.TextDetector()
	if err != nil {
		return nil, fmt.Errorf("加载文本检测器失败: %w", err)
	}
	return ocr.NewAdapter(layout, text), nil
}
