package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesService(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 144, cfg.DPI)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, int64(50*1024*1024), cfg.MaxUploadSize)
	assert.Equal(t, []string{".pdf"}, cfg.AllowedExtensions)
	assert.Equal(t, 24*time.Hour, cfg.CleanupAfter())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 9000, "batchSize": 4, "translator": {"provider": "openai"}}`), 0644))

	t.Setenv("OCRT_BATCH_SIZE", "16")
	t.Setenv("OCRT_TARGET_LANGUAGE", "ja")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, "ja", cfg.TargetLanguage)
	assert.Equal(t, "openai", cfg.Translator.Provider)
	// 文件中未设置的字段保留默认值
	assert.Equal(t, DefaultDPI, cfg.DPI)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":`), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"端口", func(c *Config) { c.Port = 0 }},
		{"DPI", func(c *Config) { c.DPI = -1 }},
		{"批大小", func(c *Config) { c.BatchSize = 0 }},
		{"目标语言", func(c *Config) { c.TargetLanguage = " " }},
		{"输出引擎", func(c *Config) { c.Writer = "reportlab" }},
		{"文本后端", func(c *Config) { c.Detector.TextBackend = "paddle" }},
		{"扩展名", func(c *Config) { c.AllowedExtensions = nil }},
		{"清理时间为零", func(c *Config) { c.CleanupAfterHours = 0 }},
		{"清理时间为负", func(c *Config) { c.CleanupAfterHours = -3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateClampsWorkers(t *testing.T) {
	cfg := Default()
	cfg.Workers = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Workers)
}

func TestAllowsExtension(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.AllowsExtension(".PDF"))
	assert.False(t, cfg.AllowsExtension(".epub"))
}

func TestApplyEnvIgnoresBadNumbers(t *testing.T) {
	cfg := Default()
	env := map[string]string{"OCRT_DPI": "abc", "OCRT_WORKERS": "4"}
	applyEnv(cfg, func(k string) string { return env[k] })
	assert.Equal(t, DefaultDPI, cfg.DPI)
	assert.Equal(t, 4, cfg.Workers)
}

func TestApplyEnvForceRetranslate(t *testing.T) {
	cfg := Default()
	env := map[string]string{"OCRT_FORCE_RETRANSLATE": "true"}
	applyEnv(cfg, func(k string) string { return env[k] })
	assert.True(t, cfg.Translator.ForceRetranslate)
}
