package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"sync"
	"time"
)

// HTTPDetector 通过 HTTP 调用模型服务进程的检测器
//
// 请求体为 {"image": "<base64 PNG>"}，响应体即检测器原始 JSON。
// 同时实现 LayoutDetector 与 TextDetector。
type HTTPDetector struct {
	Endpoint   string
	HTTPClient *http.Client
	// Concurrent 服务端支持并发请求时为 true，否则请求串行化
	Concurrent bool

	mu sync.Mutex
}

// NewHTTPDetector 创建 HTTP 检测器
func NewHTTPDetector(endpoint string, timeout time.Duration, concurrent bool) *HTTPDetector {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPDetector{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: timeout},
		Concurrent: concurrent,
	}
}

// PoolSafe 实现 PoolSafe
func (d *HTTPDetector) PoolSafe() bool {
	return d.Concurrent
}

// Detect 发送页面图像并解析检测结果
//
// 只有传输失败、非 200 状态和无法解析的 JSON 返回错误。
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) (RawResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("编码页面图像失败: %w", err)
	}

	payload, err := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if !d.Concurrent {
		d.mu.Lock()
		defer d.mu.Unlock()
	}

	body, err := d.doRequest(req)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("解析检测结果失败: %w", err)
	}
	switch v := decoded.(type) {
	case map[string]interface{}:
		return v, nil
	case nil:
		return RawResult{}, nil
	default:
		// 非对象的结构交给适配器按产物降级
		return RawResult{"res": v}, nil
	}
}

func (d *HTTPDetector) doRequest(req *http.Request) ([]byte, error) {
	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("检测服务请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("检测服务返回错误 (状态码 %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
