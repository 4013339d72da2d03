package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Scraper.MaxArticles)
	assert.Equal(t, 5, cfg.Scraper.Concurrency)
	assert.Equal(t, 8000, cfg.Quiz.ContentRuneLimit)
	assert.True(t, cfg.Moderation.AlwaysReview)
	assert.Equal(t, 0.7, cfg.Moderation.ReviewThreshold)
}

func TestReviewThresholdValidate(t *testing.T) {
	for _, threshold := range []float64{0, -0.1, 1.1} {
		cfg := Default()
		cfg.Moderation.ReviewThreshold = threshold
		require.Error(t, cfg.Validate(), threshold)
	}
	cfg := Default()
	cfg.Moderation.ReviewThreshold = 1
	require.NoError(t, cfg.Validate())

	t.Run("yaml里写0", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("moderation:\n  always_review: false\n  review_threshold: 0\n"), 0o644))
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestLoad(t *testing.T) {
	t.Run("没有配置文件时使用默认值", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "local", cfg.Lock.Backend)
	})

	t.Run("yaml覆盖默认值", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
log:
  level: debug
  format: text
lock:
  backend: redis
  redis_addr: 127.0.0.1:6380
  max_hold: 30s
scraper:
  max_articles: 4
moderation:
  always_review: false
  review_threshold: 0.5
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "redis", cfg.Lock.Backend)
		assert.Equal(t, 30*time.Second, cfg.Lock.MaxHold)
		assert.Equal(t, 4, cfg.Scraper.MaxArticles)
		// 没写的字段保留默认值
		assert.Equal(t, 5, cfg.Scraper.Concurrency)
		assert.False(t, cfg.Moderation.AlwaysReview)
	})

	t.Run("非法值校验失败", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("lock:\n  backend: etcd\n"), 0o644))
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("文件不存在", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STEPCHAIN_LLM_API_KEY":              "sk-test",
		"STEPCHAIN_SCRAPER_MAX_ARTICLES":     "3",
		"STEPCHAIN_LLM_TIMEOUT":              "10s",
		"STEPCHAIN_SCRAPER_RPS":              "0",
		"STEPCHAIN_MODERATION_ALWAYS_REVIEW": "false",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Scraper.MaxArticles)
	assert.Equal(t, 10*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, float64(0), cfg.Scraper.RPS)
	assert.False(t, cfg.Moderation.AlwaysReview)

	t.Run("非法数字", func(t *testing.T) {
		cfg := Default()
		err := cfg.applyEnv(func(key string) (string, bool) {
			if key == "STEPCHAIN_SCRAPER_CONCURRENCY" {
				return "many", true
			}
			return "", false
		})
		require.Error(t, err)
	})
}
