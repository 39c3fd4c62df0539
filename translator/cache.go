package translator

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Cache 按句缓存译文，每条译文一个文件
type Cache struct {
	dir      string
	mutex    sync.RWMutex
	disabled bool
}

// NewCache 创建缓存
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// DisableCache 禁用缓存（用于强制重新翻译）
func (c *Cache) DisableCache() {
	c.mutex.Lock()
	c.disabled = true
	c.mutex.Unlock()
}

// Get 获取缓存
func (c *Cache) Get(key string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.disabled {
		return "", false
	}
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set 设置缓存，先写临时文件再重命名
func (c *Cache) Set(key, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.disabled {
		return nil
	}
	path := c.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *Cache) path(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".txt")
}

// CacheKey 生成缓存键
func CacheKey(provider, text, targetLanguage string) string {
	data := map[string]string{
		"provider":       provider,
		"text":           text,
		"targetLanguage": targetLanguage,
	}
	jsonData, _ := json.Marshal(data)
	return string(jsonData)
}
