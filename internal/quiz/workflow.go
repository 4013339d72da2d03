package quiz

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/blingmoon/stepchain/internal/llm"
	"github.com/blingmoon/stepchain/workflow"
	"github.com/pkg/errors"
)

const (
	WorkflowName = "zenn-quiz-workflow"

	StepFetchTrending = "fetch-trending-articles"
	StepFetchContents = "fetch-article-contents"
	StepGenerate      = "generate-quizzes"
	StepIntegrate     = "integrate-quizzes"

	FetchFailedContent = "内容の取得に失敗しました"

	DefaultConcurrency      = 5
	DefaultContentRuneLimit = 8000
	DefaultTitle            = "最新技術トレンドクイズ"
	DefaultDescription      = "Zennのトレンド記事から生成された最新技術トレンドに関するクイズです。"
)

var (
	ErrNoArticles        = errors.New("記事が見つかりませんでした")
	ErrNoArticleContents = errors.New("記事内容が見つかりませんでした")
	ErrNoQuizzes         = errors.New("クイズが生成されませんでした")
)

type Options struct {
	Source     ArticleSource
	Generator  llm.Generator
	Integrator llm.Generator

	Concurrency      int
	ContentRuneLimit int
	Title            string
	Description      string

	// 生成的文本分片实时写出去，nil 表示不输出
	Echo   io.Writer
	Logger *slog.Logger
	Now    func() time.Time
}

func (o *Options) withDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.ContentRuneLimit <= 0 {
		o.ContentRuneLimit = DefaultContentRuneLimit
	}
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.Description == "" {
		o.Description = DefaultDescription
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Steps 问题集流水线的四个节点
type Steps struct {
	FetchTrending *workflow.Step[[]Article]
	FetchContents *workflow.Step[[]ArticleContent]
	Generate      *workflow.Step[[]QuizItem]
	Integrate     *workflow.Step[QuizSet]
}

// NewDefinition 构建并 commit 流水线
func NewDefinition(opts Options) (*workflow.Workflow, *Steps, error) {
	if opts.Source == nil || opts.Generator == nil || opts.Integrator == nil {
		return nil, nil, errors.New("quiz: source, generator and integrator are required")
	}
	opts.withDefaults()
	steps := newSteps(opts)
	definition := workflow.NewWorkflow(WorkflowName, workflow.WithLogger(opts.Logger)).
		Step(steps.FetchTrending).
		Then(steps.FetchContents).
		Then(steps.Generate).
		Then(steps.Integrate)
	if err := definition.Commit(); err != nil {
		return nil, nil, err
	}
	return definition, steps, nil
}

func newSteps(opts Options) *Steps {
	steps := &Steps{}

	steps.FetchTrending = workflow.NewStep(StepFetchTrending,
		func(ctx context.Context, rc *workflow.RunContext) (workflow.Result[[]Article], error) {
			rc.Logger().InfoContext(ctx, "fetching trending articles")
			articles, err := opts.Source.FetchTrending(ctx)
			if err != nil {
				return workflow.Result[[]Article]{}, err
			}
			rc.Logger().InfoContext(ctx, "trending articles fetched", slog.Int("count", len(articles)))
			return workflow.Complete(articles), nil
		},
		workflow.WithDescription("Zennのトップページからトレンド記事を取得します"),
	)

	contentExecutor := workflow.NewBatchExecutor(opts.Concurrency,
		func(article Article, err error) ArticleContent {
			return ArticleContent{Article: article, Content: FetchFailedContent, FetchFailed: true}
		},
		workflow.WithBatchLogger(opts.Logger),
		workflow.WithBatchName(StepFetchContents),
	)
	steps.FetchContents = workflow.NewStep(StepFetchContents,
		func(ctx context.Context, rc *workflow.RunContext) (workflow.Result[[]ArticleContent], error) {
			articles, err := workflow.StepOutput(rc, steps.FetchTrending)
			if err != nil {
				return workflow.Result[[]ArticleContent]{}, err
			}
			if len(articles) == 0 {
				return workflow.Result[[]ArticleContent]{}, ErrNoArticles
			}
			rc.Logger().InfoContext(ctx, "fetching article contents", slog.Int("count", len(articles)))
			outcomes := contentExecutor.Execute(ctx, articles, func(ctx context.Context, article Article) (ArticleContent, error) {
				content, err := opts.Source.FetchContent(ctx, article)
				if err != nil {
					return ArticleContent{}, err
				}
				return ArticleContent{Article: article, Content: content}, nil
			})
			for _, failure := range workflow.Failures(outcomes) {
				rc.Logger().WarnContext(ctx, "[warn]fetch article content failed",
					slog.String("title", failure.Input.Title),
					slog.String("err", failure.Err.Error()),
				)
			}
			return workflow.Complete(workflow.Values(outcomes)), nil
		},
		workflow.WithDescription("各記事の内容を取得します"),
	)

	steps.Generate = workflow.NewStep(StepGenerate,
		func(ctx context.Context, rc *workflow.RunContext) (workflow.Result[[]QuizItem], error) {
			contents, err := workflow.StepOutput(rc, steps.FetchContents)
			if err != nil {
				return workflow.Result[[]QuizItem]{}, err
			}
			if len(contents) == 0 {
				return workflow.Result[[]QuizItem]{}, ErrNoArticleContents
			}
			items := make([]QuizItem, 0)
			for _, content := range contents {
				rc.Logger().InfoContext(ctx, "generating quizzes", slog.String("title", content.Title))
				text, err := llm.GenerateText(ctx, opts.Generator, buildGeneratePrompt(content, opts.ContentRuneLimit), opts.Echo)
				if err != nil {
					// 单篇失败跳过
					rc.Logger().WarnContext(ctx, "[warn]generate quizzes failed",
						slog.String("title", content.Title),
						slog.String("err", err.Error()),
					)
					continue
				}
				items = append(items, ParseQuizText(text, content.Article)...)
			}
			rc.Logger().InfoContext(ctx, "quizzes generated", slog.Int("count", len(items)))
			return workflow.Complete(items), nil
		},
		workflow.WithDescription("各記事からクイズを生成します"),
	)

	steps.Integrate = workflow.NewStep(StepIntegrate,
		func(ctx context.Context, rc *workflow.RunContext) (workflow.Result[QuizSet], error) {
			items, err := workflow.StepOutput(rc, steps.Generate)
			if err != nil {
				return workflow.Result[QuizSet]{}, err
			}
			if len(items) == 0 {
				return workflow.Result[QuizSet]{}, ErrNoQuizzes
			}
			prompt, err := buildIntegratePrompt(items)
			if err != nil {
				return workflow.Result[QuizSet]{}, errors.WithMessage(err, "build integrate prompt failed")
			}
			rc.Logger().InfoContext(ctx, "integrating quizzes", slog.Int("count", len(items)))
			summary, err := llm.GenerateText(ctx, opts.Integrator, prompt, opts.Echo)
			if err != nil {
				return workflow.Result[QuizSet]{}, err
			}
			return workflow.Complete(QuizSet{
				Title:       opts.Title,
				Description: opts.Description,
				Items:       items,
				CreatedAt:   opts.Now(),
				Summary:     summary,
			}), nil
		},
		workflow.WithDescription("生成されたクイズを統合します"),
	)
	return steps
}
