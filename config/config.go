// Package config 服务配置：默认值 -> JSON 配置文件 -> 环境变量，后者覆盖前者。
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultConfigFileName 默认配置文件名
	DefaultConfigFileName = "ocr-translator.json"
	// EnvConfigFile 指定配置文件路径的环境变量
	EnvConfigFile = "OCRT_CONFIG"
	// EnvPrefix 环境变量前缀
	EnvPrefix = "OCRT_"

	DefaultPort           = 8000
	DefaultDPI            = 144
	DefaultBatchSize      = 8
	DefaultMaxUploadSize  = 50 << 20
	DefaultTargetLanguage = "ko"
	DefaultSourceLanguage = "en"
	DefaultCleanupHours   = 24
)

// DetectorConfig 识别模型服务配置
type DetectorConfig struct {
	// LayoutURL 版面+公式识别服务地址
	LayoutURL string `json:"layoutUrl"`
	// TextBackend 文本识别后端：http | tesseract
	TextBackend string `json:"textBackend"`
	// TextURL 文本识别服务地址（TextBackend=http 时使用）
	TextURL string `json:"textUrl"`
	// TesseractLanguages tesseract 语言，如 ["eng"]
	TesseractLanguages []string `json:"tesseractLanguages"`
	// PoolSafe 模型服务是否支持并发请求
	PoolSafe   bool `json:"poolSafe"`
	TimeoutSec int  `json:"timeoutSec"`
}

// TranslatorConfig 翻译服务配置
type TranslatorConfig struct {
	Provider         string            `json:"provider"` // seq2seq, openai, deepseek, libretranslate
	APIURL           string            `json:"apiUrl"`
	APIKey           string            `json:"apiKey"`
	Model            string            `json:"model"`
	Temperature      float64           `json:"temperature"`
	MaxTokens        int               `json:"maxTokens"`
	RetryTimes       int               `json:"retryTimes"`
	RetryIntervalSec int               `json:"retryIntervalSec"`
	TimeoutSec       int               `json:"timeoutSec"`
	CacheDir         string            `json:"cacheDir"`
	ForceRetranslate bool              `json:"forceRetranslate"` // 跳过已有缓存
	Extra            map[string]string `json:"extra,omitempty"`
}

// RendererConfig 公式渲染配置
type RendererConfig struct {
	Enabled    bool   `json:"enabled"`
	Pdflatex   string `json:"pdflatex"`
	Pdftoppm   string `json:"pdftoppm"`
	TimeoutSec int    `json:"timeoutSec"`
}

// Config 服务配置
type Config struct {
	Port              int      `json:"port"`
	DevMode           bool     `json:"devMode"`
	TempDir           string   `json:"tempDir"`
	UploadDir         string   `json:"uploadDir"`
	ResultDir         string   `json:"resultDir"`
	LogDir            string   `json:"logDir"`
	StaticDir         string   `json:"staticDir"`
	MaxUploadSize     int64    `json:"maxUploadSize"`
	AllowedExtensions []string `json:"allowedExtensions"`
	CleanupAfterHours int      `json:"cleanupAfterHours"`

	DPI            int    `json:"dpi"`
	Workers        int    `json:"workers"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	BatchSize      int    `json:"batchSize"`
	Writer         string `json:"writer"` // gofpdf | gopdf
	FontPath       string `json:"fontPath"`

	LogLevel      string `json:"logLevel"`
	LogFormat     string `json:"logFormat"` // text | json
	JobLogConsole bool   `json:"jobLogConsole"`

	Detector   DetectorConfig   `json:"detector"`
	Translator TranslatorConfig `json:"translator"`
	Renderer   RendererConfig   `json:"renderer"`
}

// Default 返回默认配置
func Default() *Config {
	tempDir := "temp"
	return &Config{
		Port:              DefaultPort,
		TempDir:           tempDir,
		UploadDir:         filepath.Join(tempDir, "uploads"),
		ResultDir:         filepath.Join(tempDir, "results"),
		LogDir:            "logs",
		StaticDir:         "frontend",
		MaxUploadSize:     DefaultMaxUploadSize,
		AllowedExtensions: []string{".pdf"},
		CleanupAfterHours: DefaultCleanupHours,
		DPI:               DefaultDPI,
		Workers:           1,
		SourceLanguage:    DefaultSourceLanguage,
		TargetLanguage:    DefaultTargetLanguage,
		BatchSize:         DefaultBatchSize,
		Writer:            "gofpdf",
		LogLevel:          "info",
		LogFormat:         "text",
		Detector: DetectorConfig{
			LayoutURL:          "http://127.0.0.1:8866/formula",
			TextBackend:        "http",
			TextURL:            "http://127.0.0.1:8866/ocr",
			TesseractLanguages: []string{"eng"},
			TimeoutSec:         120,
		},
		Translator: TranslatorConfig{
			Provider:         "seq2seq",
			APIURL:           "http://127.0.0.1:8867/translate",
			Model:            "Helsinki-NLP/opus-mt-en-ko",
			RetryTimes:       3,
			RetryIntervalSec: 2,
			TimeoutSec:       60,
			CacheDir:         filepath.Join(tempDir, "cache"),
		},
		Renderer: RendererConfig{
			Enabled:    true,
			Pdflatex:   "pdflatex",
			Pdftoppm:   "pdftoppm",
			TimeoutSec: 10,
		},
	}
}

// Load 加载配置
//
// path 为空时依次尝试 $OCRT_CONFIG 和当前目录下的默认文件；文件不存在时使用默认值。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path == "" {
		path = DefaultConfigFileName
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败 %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// 使用默认值
	default:
		return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
	}

	applyEnv(cfg, os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 使用环境变量覆盖配置
func applyEnv(cfg *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := getenv(EnvPrefix + key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	num("PORT", &cfg.Port)
	flag("DEV_MODE", &cfg.DevMode)
	str("UPLOAD_DIR", &cfg.UploadDir)
	str("RESULT_DIR", &cfg.ResultDir)
	str("LOG_DIR", &cfg.LogDir)
	str("STATIC_DIR", &cfg.StaticDir)
	if v := getenv(EnvPrefix + "MAX_UPLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadSize = n
		}
	}
	num("DPI", &cfg.DPI)
	num("WORKERS", &cfg.Workers)
	str("SOURCE_LANGUAGE", &cfg.SourceLanguage)
	str("TARGET_LANGUAGE", &cfg.TargetLanguage)
	num("BATCH_SIZE", &cfg.BatchSize)
	str("WRITER", &cfg.Writer)
	str("FONT_PATH", &cfg.FontPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	str("LAYOUT_URL", &cfg.Detector.LayoutURL)
	str("TEXT_BACKEND", &cfg.Detector.TextBackend)
	str("TEXT_URL", &cfg.Detector.TextURL)
	flag("DETECTOR_POOL_SAFE", &cfg.Detector.PoolSafe)

	str("TRANSLATOR_PROVIDER", &cfg.Translator.Provider)
	str("TRANSLATOR_URL", &cfg.Translator.APIURL)
	str("TRANSLATOR_API_KEY", &cfg.Translator.APIKey)
	str("TRANSLATOR_MODEL", &cfg.Translator.Model)
	flag("FORCE_RETRANSLATE", &cfg.Translator.ForceRetranslate)

	flag("RENDER_FORMULAS", &cfg.Renderer.Enabled)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("端口无效: %d", c.Port)
	}
	if c.DPI <= 0 {
		return fmt.Errorf("DPI 必须大于 0: %d", c.DPI)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("批大小必须大于 0: %d", c.BatchSize)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("上传大小上限必须大于 0: %d", c.MaxUploadSize)
	}
	if strings.TrimSpace(c.TargetLanguage) == "" {
		return fmt.Errorf("目标语言不能为空")
	}
	if len(c.AllowedExtensions) == 0 {
		return fmt.Errorf("至少需要一个允许的扩展名")
	}
	if c.CleanupAfterHours <= 0 {
		return fmt.Errorf("清理时间必须大于 0: %d", c.CleanupAfterHours)
	}
	switch c.Writer {
	case "gofpdf", "gopdf":
	default:
		return fmt.Errorf("不支持的 PDF 输出引擎: %s", c.Writer)
	}
	switch c.Detector.TextBackend {
	case "http", "tesseract":
	default:
		return fmt.Errorf("不支持的文本识别后端: %s", c.Detector.TextBackend)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}

// AllowsExtension 是否允许该扩展名（不区分大小写）
func (c *Config) AllowsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

// CleanupAfter 临时文件保留时长
func (c *Config) CleanupAfter() time.Duration {
	return time.Duration(c.CleanupAfterHours) * time.Hour
}

// EnsureDirs 创建运行所需目录
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.UploadDir, c.ResultDir, c.LogDir, c.Translator.CacheDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
	}
	return nil
}

// Seconds 将秒数转换为 Duration，非正数返回 fallback
func Seconds(sec int, fallback time.Duration) time.Duration {
	if sec <= 0 {
		return fallback
	}
	return time.Duration(sec) * time.Second
}
