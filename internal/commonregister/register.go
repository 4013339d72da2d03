package commonregister

import (
	"context"
	"io"
	"log/slog"

	"github.com/blingmoon/stepchain/internal/archive"
	"github.com/blingmoon/stepchain/internal/config"
	"github.com/blingmoon/stepchain/internal/llm"
	"github.com/blingmoon/stepchain/internal/moderation"
	"github.com/blingmoon/stepchain/internal/quiz"
	"github.com/blingmoon/stepchain/internal/scraper"
	"github.com/blingmoon/stepchain/workflow"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Registry 按配置装配好的两个应用以及它们共用的基础设施
type Registry struct {
	Config     *config.Config
	Logger     *slog.Logger
	Repo       archive.Repo
	Lock       workflow.RunLock
	Moderation *moderation.Service
	Quiz       *quiz.Service

	db          *gorm.DB
	redisClient *redis.Client
}

type Options struct {
	// 生成问题集时实时输出模型的文本，nil 表示不输出
	Echo io.Writer
	// 为空时用随机评分
	Scorer moderation.RiskScorer
	// 为空时用 zenn 抓取
	Source quiz.ArticleSource
}

// Register 装配审核流程和问题集流水线
func Register(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = r.Close()
		}
	}()

	db, err := archive.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.Repo = archive.NewRepo(db)

	if err := r.registerLock(ctx); err != nil {
		return nil, err
	}
	if err := r.registerModeration(opts); err != nil {
		return nil, err
	}
	if err := r.registerQuiz(opts); err != nil {
		return nil, err
	}
	ok = true
	logger.InfoContext(ctx, "stepchain registered",
		slog.String("lock", cfg.Lock.Backend),
		slog.String("database", cfg.Database.DSN),
		slog.String("model", cfg.LLM.Model),
	)
	return r, nil
}

func (r *Registry) registerLock(ctx context.Context) error {
	switch r.Config.Lock.Backend {
	case "redis":
		r.redisClient = redis.NewClient(&redis.Options{
			Addr:     r.Config.Lock.RedisAddr,
			Password: r.Config.Lock.RedisPassword,
			DB:       r.Config.Lock.RedisDB,
		})
		if err := r.redisClient.Ping(ctx).Err(); err != nil {
			return errors.WithMessagef(err, "ping redis failed, addr: %s", r.Config.Lock.RedisAddr)
		}
		r.Lock = workflow.NewRedisRunLock(r.redisClient, r.Logger)
	default:
		r.Lock = workflow.NewLocalRunLock(r.Logger)
	}
	return nil
}

func (r *Registry) registerModeration(opts Options) error {
	definition, steps, err := moderation.NewDefinition(moderation.Options{
		Scorer:          opts.Scorer,
		AlwaysReview:    r.Config.Moderation.AlwaysReview,
		ReviewThreshold: r.Config.Moderation.ReviewThreshold,
		Logger:          r.Logger,
	})
	if err != nil {
		return errors.WithMessage(err, "register moderation failed")
	}
	r.Moderation = moderation.NewService(definition, steps, moderation.ServiceOptions{
		Lock:     r.Lock,
		LockHold: r.Config.Lock.MaxHold,
		Repo:     r.Repo,
		Logger:   r.Logger,
	})
	return nil
}

func (r *Registry) registerQuiz(opts Options) error {
	source := opts.Source
	if source == nil {
		fetcher := scraper.NewHTTPFetcher(scraper.HTTPFetcherOptions{
			Timeout:   r.Config.Scraper.Timeout,
			UserAgent: r.Config.Scraper.UserAgent,
			RPS:       r.Config.Scraper.RPS,
			Logger:    r.Logger,
		})
		source = quiz.NewZennSource(scraper.NewClient(fetcher, scraper.ClientOptions{
			BaseURL:     r.Config.Scraper.BaseURL,
			TrendingURL: r.Config.Scraper.TrendingURL,
			MaxArticles: r.Config.Scraper.MaxArticles,
		}))
	}
	client := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: r.Config.LLM.BaseURL,
		APIKey:  r.Config.LLM.APIKey,
		Model:   r.Config.LLM.Model,
		Timeout: r.Config.LLM.Timeout,
	})
	definition, steps, err := quiz.NewDefinition(quiz.Options{
		Source:           source,
		Generator:        llm.NewOpenAIGenerator(client, r.Config.LLM.Model, "quiz-generator", quiz.GeneratorInstructions, r.Logger),
		Integrator:       llm.NewOpenAIGenerator(client, r.Config.LLM.Model, "quiz-integrator", quiz.IntegratorInstructions, r.Logger),
		Concurrency:      r.Config.Scraper.Concurrency,
		ContentRuneLimit: r.Config.Quiz.ContentRuneLimit,
		Title:            r.Config.Quiz.Title,
		Description:      r.Config.Quiz.Description,
		Echo:             opts.Echo,
		Logger:           r.Logger,
	})
	if err != nil {
		return errors.WithMessage(err, "register quiz failed")
	}
	r.Quiz = quiz.NewService(definition, steps, r.Repo, r.Logger)
	return nil
}

// Close 关闭数据库和 redis 连接
func (r *Registry) Close() error {
	var first error
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			first = err
		}
		r.redisClient = nil
	}
	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && first == nil {
			first = err
		}
		r.db = nil
	}
	return first
}
