package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProviderType 翻译服务类型
type ProviderType string

const (
	ProviderSeq2Seq        ProviderType = "seq2seq"        // NLLB / Marian 模型服务
	ProviderOpenAI         ProviderType = "openai"         // OpenAI 兼容接口
	ProviderDeepSeek       ProviderType = "deepseek"       // DeepSeek（OpenAI 兼容）
	ProviderLibreTranslate ProviderType = "libretranslate" // LibreTranslate
)

// Provider 翻译服务
type Provider interface {
	Translator
	GetName() string
}

// ProviderConfig 提供商配置
type ProviderConfig struct {
	Type           ProviderType      `json:"type"`
	APIKey         string            `json:"apiKey"`
	APIURL         string            `json:"apiUrl"`
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"maxTokens"`
	SourceLanguage string            `json:"sourceLanguage"`
	Timeout        time.Duration     `json:"-"`
	Extra          map[string]string `json:"extra,omitempty"`
}

// BaseProvider 基础提供商实现
type BaseProvider struct {
	Config     ProviderConfig
	HTTPClient *http.Client
}

// NewProvider 创建提供商实例
func NewProvider(config ProviderConfig) (Provider, error) {
	if config.APIURL == "" {
		return nil, fmt.Errorf("提供商 %s 未配置 apiUrl", config.Type)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	base := &BaseProvider{
		Config:     config,
		HTTPClient: &http.Client{Timeout: timeout},
	}

	switch config.Type {
	case ProviderSeq2Seq:
		return &Seq2SeqProvider{BaseProvider: base}, nil
	case ProviderOpenAI, ProviderDeepSeek:
		return &OpenAIProvider{BaseProvider: base}, nil
	case ProviderLibreTranslate:
		return &LibreTranslateProvider{BaseProvider: base}, nil
	default:
		return nil, fmt.Errorf("不支持的提供商类型: %s", config.Type)
	}
}

// postJSON 发送 JSON 请求并返回响应体
func (b *BaseProvider) postJSON(ctx context.Context, url string, payload interface{}, headers map[string]string) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return b.doRequest(req)
}

// doRequest 执行 HTTP 请求
func (b *BaseProvider) doRequest(req *http.Request) ([]byte, error) {
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API 请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// StatusError 非 200 响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API 返回错误 (状态码 %d): %s", e.StatusCode, e.Body)
}

// Retryable 5xx 与 429 可重试
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func checkCount(want, got int) error {
	if want != got {
		return fmt.Errorf("API 返回 %d 条译文, 期望 %d 条", got, want)
	}
	return nil
}

// Seq2SeqProvider 序列到序列翻译模型服务
//
// 请求 {"texts": [...], "source_lang": "eng_Latn", "target_lang": "kor_Hang"}，
// 响应 {"translations": [...]}。
type Seq2SeqProvider struct {
	*BaseProvider
}

func (p *Seq2SeqProvider) GetName() string {
	return string(ProviderSeq2Seq)
}

func (p *Seq2SeqProvider) TranslateBatch(ctx context.Context, batch []string, targetLanguage string) ([]string, error) {
	if targetLanguage == "" {
		return nil, ErrMissingTargetLanguage
	}
	target, err := LanguageCode(targetLanguage)
	if err != nil {
		return nil, err
	}
	source := "eng_Latn"
	if p.Config.SourceLanguage != "" {
		if source, err = LanguageCode(p.Config.SourceLanguage); err != nil {
			return nil, err
		}
	}

	reqBody := map[string]interface{}{
		"texts":       batch,
		"source_lang": source,
		"target_lang": target,
	}
	if p.Config.Model != "" {
		reqBody["model"] = p.Config.Model
	}
	if p.Config.MaxTokens > 0 {
		reqBody["max_length"] = p.Config.MaxTokens
	}

	body, err := p.postJSON(ctx, p.Config.APIURL, reqBody, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Translations []string `json:"translations"`
		Error        string   `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("翻译错误: %s", resp.Error)
	}
	if err := checkCount(len(batch), len(resp.Translations)); err != nil {
		return nil, err
	}
	return resp.Translations, nil
}

// OpenAIProvider OpenAI 兼容的提供商（包括 OpenAI、DeepSeek 等）
//
// 整批句子以 JSON 数组发送，要求模型返回等长 JSON 数组。
type OpenAIProvider struct {
	*BaseProvider
}

func (p *OpenAIProvider) GetName() string {
	return string(p.Config.Type)
}

func (p *OpenAIProvider) TranslateBatch(ctx context.Context, batch []string, targetLanguage string) ([]string, error) {
	if targetLanguage == "" {
		return nil, ErrMissingTargetLanguage
	}

	systemPrompt := fmt.Sprintf("You are a professional translator. Translate each string in the JSON array to %s. "+
		"Keep the original meaning and style. Return only a JSON array of strings with exactly %d elements, in the same order, without any explanations.",
		DisplayName(targetLanguage), len(batch))
	if prompt := p.Config.Extra["prompt"]; prompt != "" {
		systemPrompt += " " + prompt
	}

	input, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]interface{}{
		"model":       p.Config.Model,
		"temperature": p.Config.Temperature,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": string(input)},
		},
	}
	if p.Config.MaxTokens > 0 {
		reqBody["max_tokens"] = p.Config.MaxTokens
	}

	headers := map[string]string{}
	if p.Config.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.Config.APIKey
	}

	body, err := p.postJSON(ctx, p.Config.APIURL, reqBody, headers)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API 错误: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("API 未返回翻译结果")
	}

	var out []string
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Choices[0].Message.Content)), &out); err != nil {
		return nil, fmt.Errorf("译文不是 JSON 数组: %w", err)
	}
	if err := checkCount(len(batch), len(out)); err != nil {
		return nil, err
	}
	return out, nil
}

// stripCodeFence 去掉模型常加的 ```json 包裹
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// LibreTranslateProvider LibreTranslate 提供商
type LibreTranslateProvider struct {
	*BaseProvider
}

func (p *LibreTranslateProvider) GetName() string {
	return string(ProviderLibreTranslate)
}

func (p *LibreTranslateProvider) TranslateBatch(ctx context.Context, batch []string, targetLanguage string) ([]string, error) {
	if targetLanguage == "" {
		return nil, ErrMissingTargetLanguage
	}
	target, err := ISOCode(targetLanguage)
	if err != nil {
		return nil, err
	}
	source := "auto"
	if p.Config.SourceLanguage != "" {
		if source, err = ISOCode(p.Config.SourceLanguage); err != nil {
			return nil, err
		}
	}

	reqBody := map[string]interface{}{
		"q":      batch,
		"source": source,
		"target": target,
		"format": "text",
	}
	if p.Config.APIKey != "" {
		reqBody["api_key"] = p.Config.APIKey
	}

	body, err := p.postJSON(ctx, p.Config.APIURL, reqBody, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		TranslatedText []string `json:"translatedText"`
		Error          string   `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("翻译错误: %s", resp.Error)
	}
	if err := checkCount(len(batch), len(resp.TranslatedText)); err != nil {
		return nil, err
	}
	return resp.TranslatedText, nil
}
