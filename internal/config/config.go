package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const envPrefix = "STEPCHAIN_"

var validatorUtil = validator.New()

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Lock       LockConfig       `yaml:"lock"`
	LLM        LLMConfig        `yaml:"llm"`
	Scraper    ScraperConfig    `yaml:"scraper"`
	Quiz       QuizConfig       `yaml:"quiz"`
	Moderation ModerationConfig `yaml:"moderation"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

type DatabaseConfig struct {
	// sqlite 文件路径，":memory:" 表示内存库
	DSN string `yaml:"dsn" validate:"required"`
}

type LockConfig struct {
	Backend       string        `yaml:"backend" validate:"oneof=local redis"`
	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db" validate:"gte=0"`
	MaxHold       time.Duration `yaml:"max_hold" validate:"gt=0"`
}

type LLMConfig struct {
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type ScraperConfig struct {
	BaseURL     string        `yaml:"base_url" validate:"required,url"`
	TrendingURL string        `yaml:"trending_url" validate:"required,url"`
	MaxArticles int           `yaml:"max_articles" validate:"gt=0"`
	Concurrency int           `yaml:"concurrency" validate:"gt=0"`
	RPS         float64       `yaml:"rps" validate:"gte=0"` // 0 表示不限速
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	UserAgent   string        `yaml:"user_agent"`
}

type QuizConfig struct {
	ContentRuneLimit int    `yaml:"content_rune_limit" validate:"gt=0"`
	Title            string `yaml:"title" validate:"required"`
	Description      string `yaml:"description"`
}

type ModerationConfig struct {
	// 为 true 时所有内容都进入人工审核
	AlwaysReview bool `yaml:"always_review"`
	// 分数 >= 阈值时进入人工审核，必须大于 0，全部审核用 always_review
	ReviewThreshold float64 `yaml:"review_threshold" validate:"gt=0,lte=1"`
}

func Default() *Config {
	return &Config{
		Log:      LogConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{DSN: "stepchain.sqlite3"},
		Lock: LockConfig{
			Backend:   "local",
			RedisAddr: "127.0.0.1:6379",
			MaxHold:   5 * time.Minute,
		},
		LLM: LLMConfig{
			Model:   "gpt-4o",
			Timeout: 2 * time.Minute,
		},
		Scraper: ScraperConfig{
			BaseURL:     "https://zenn.dev",
			TrendingURL: "https://zenn.dev/",
			MaxArticles: 2,
			Concurrency: 5,
			RPS:         2,
			Timeout:     30 * time.Second,
			UserAgent:   "stepchain/1.0",
		},
		Quiz: QuizConfig{
			ContentRuneLimit: 8000,
			Title:            "最新技術トレンドクイズ",
			Description:      "Zennのトレンド記事から生成された最新技術トレンドに関するクイズです。",
		},
		Moderation: ModerationConfig{
			AlwaysReview:    true,
			ReviewThreshold: 0.7,
		},
	}
}

// Load 读取配置文件(path 为空时只用默认值)，再用环境变量覆盖，最后校验
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WithMessagef(err, "read config failed, path: %s", path)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, errors.WithMessagef(err, "parse config failed, path: %s", path)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validatorUtil.Struct(c); err != nil {
		return errors.WithMessage(err, "invalid config")
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv 环境变量覆盖，例如 STEPCHAIN_LLM_API_KEY
func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"LOG_LEVEL":            &c.Log.Level,
		"LOG_FORMAT":           &c.Log.Format,
		"DATABASE_DSN":         &c.Database.DSN,
		"LOCK_BACKEND":         &c.Lock.Backend,
		"LOCK_REDIS_ADDR":      &c.Lock.RedisAddr,
		"LOCK_REDIS_PASSWORD":  &c.Lock.RedisPassword,
		"LLM_BASE_URL":         &c.LLM.BaseURL,
		"LLM_API_KEY":          &c.LLM.APIKey,
		"LLM_MODEL":            &c.LLM.Model,
		"SCRAPER_BASE_URL":     &c.Scraper.BaseURL,
		"SCRAPER_TRENDING_URL": &c.Scraper.TrendingURL,
		"SCRAPER_USER_AGENT":   &c.Scraper.UserAgent,
	}
	for key, target := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*target = v
		}
	}
	ints := map[string]*int{
		"LOCK_REDIS_DB":           &c.Lock.RedisDB,
		"SCRAPER_MAX_ARTICLES":    &c.Scraper.MaxArticles,
		"SCRAPER_CONCURRENCY":     &c.Scraper.Concurrency,
		"QUIZ_CONTENT_RUNE_LIMIT": &c.Quiz.ContentRuneLimit,
	}
	for key, target := range ints {
		if v, ok := lookup(envPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.WithMessagef(err, "invalid env %s%s", envPrefix, key)
			}
			*target = n
		}
	}
	durations := map[string]*time.Duration{
		"LOCK_MAX_HOLD":   &c.Lock.MaxHold,
		"LLM_TIMEOUT":     &c.LLM.Timeout,
		"SCRAPER_TIMEOUT": &c.Scraper.Timeout,
	}
	for key, target := range durations {
		if v, ok := lookup(envPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.WithMessagef(err, "invalid env %s%s", envPrefix, key)
			}
			*target = d
		}
	}
	if v, ok := lookup(envPrefix + "SCRAPER_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.WithMessagef(err, "invalid env %sSCRAPER_RPS", envPrefix)
		}
		c.Scraper.RPS = f
	}
	if v, ok := lookup(envPrefix + "MODERATION_ALWAYS_REVIEW"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.WithMessagef(err, "invalid env %sMODERATION_ALWAYS_REVIEW", envPrefix)
		}
		c.Moderation.AlwaysReview = b
	}
	return nil
}
