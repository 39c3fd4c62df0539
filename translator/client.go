package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Client 带重试与缓存的翻译客户端
type Client struct {
	Provider      Provider
	Cache         *Cache
	RetryTimes    int
	RetryInterval time.Duration
	Logger        logrus.FieldLogger
}

// NewClient 创建翻译客户端
func NewClient(config ProviderConfig, cache *Cache) (*Client, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	return &Client{
		Provider:      provider,
		Cache:         cache,
		RetryTimes:    3,
		RetryInterval: 2 * time.Second,
		Logger:        logrus.StandardLogger(),
	}, nil
}

// WithRetry 设置重试参数
func (c *Client) WithRetry(times int, interval time.Duration) *Client {
	c.RetryTimes = times
	c.RetryInterval = interval
	return c
}

// TranslateBatch 实现 Translator，命中缓存的句子不再请求
func (c *Client) TranslateBatch(ctx context.Context, batch []string, targetLanguage string) ([]string, error) {
	if targetLanguage == "" {
		return nil, ErrMissingTargetLanguage
	}

	results := make([]string, len(batch))
	var missing []int
	for i, text := range batch {
		if cached, ok := c.lookup(text, targetLanguage); ok {
			results[i] = cached
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return results, nil
	}

	pending := make([]string, len(missing))
	for j, idx := range missing {
		pending[j] = batch[idx]
	}

	translated, err := c.translateWithRetry(ctx, pending, targetLanguage)
	if err != nil {
		return nil, err
	}
	if len(translated) != len(pending) {
		return nil, fmt.Errorf("API 返回 %d 条译文, 期望 %d 条", len(translated), len(pending))
	}

	for j, idx := range missing {
		results[idx] = translated[j]
		c.store(batch[idx], targetLanguage, translated[j])
	}
	return results, nil
}

func (c *Client) translateWithRetry(ctx context.Context, batch []string, targetLanguage string) ([]string, error) {
	attempt := 0
	op := func() ([]string, error) {
		attempt++
		out, err := c.Provider.TranslateBatch(ctx, batch, targetLanguage)
		if err == nil {
			return out, nil
		}
		if !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		c.logger().WithFields(logrus.Fields{
			"provider": c.Provider.GetName(),
			"attempt":  attempt,
		}).WithError(err).Warn("翻译请求失败，准备重试")
		return nil, err
	}

	var policy backoff.BackOff = backoff.NewConstantBackOff(c.RetryInterval)
	if c.RetryTimes >= 0 {
		policy = backoff.WithMaxRetries(policy, uint64(c.RetryTimes))
	}

	out, err := backoff.RetryWithData(op, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("翻译失败（尝试 %d 次后）: %w", attempt, err)
	}
	return out, nil
}

// retryable 参数类错误不重试
func retryable(err error) bool {
	if errors.Is(err, ErrMissingTargetLanguage) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

func (c *Client) lookup(text, targetLanguage string) (string, bool) {
	if c.Cache == nil {
		return "", false
	}
	return c.Cache.Get(CacheKey(c.Provider.GetName(), text, targetLanguage))
}

func (c *Client) store(text, targetLanguage, result string) {
	if c.Cache == nil {
		return
	}
	if err := c.Cache.Set(CacheKey(c.Provider.GetName(), text, targetLanguage), result); err != nil {
		c.logger().WithError(err).Warn("写入翻译缓存失败")
	}
}

func (c *Client) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}
