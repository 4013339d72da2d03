package moderation

import (
	"context"
	"log/slog"
	"time"

	"github.com/blingmoon/stepchain/workflow"
	"github.com/pkg/errors"
)

const (
	WorkflowName = "content-moderation-workflow"

	StepAnalyze  = "analyzeContent"
	StepModerate = "moderateContent"
	StepApply    = "applyModeration"

	ReviewMessage = "人間のモデレーション判断が必要です - ワークフローが一時停止されました"

	DefaultReviewThreshold = 0.7
)

var (
	ErrContentMissing = errors.New("content not provided in trigger data")
)

type Options struct {
	Scorer RiskScorer
	// 为 true 时不看分数，全部进入人工审核
	AlwaysReview bool
	// 没有设置(<=0)时使用 DefaultReviewThreshold
	ReviewThreshold float64
	Logger          *slog.Logger
	Now             func() time.Time
}

func (o *Options) withDefaults() {
	if o.Scorer == nil {
		o.Scorer = NewRandomScorer(time.Now().UnixNano())
	}
	if o.ReviewThreshold <= 0 {
		o.ReviewThreshold = DefaultReviewThreshold
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

func (o *Options) needsReview(analysis Analysis) bool {
	return o.AlwaysReview || analysis.AIAnalysisScore >= o.ReviewThreshold
}

// Steps 审核流程的三个节点
type Steps struct {
	Analyze  *workflow.Step[Analysis]
	Moderate *workflow.Step[ModerationResult]
	Apply    *workflow.Step[Outcome]
}

// NewDefinition 构建并 commit 审核流程
func NewDefinition(opts Options) (*workflow.Workflow, *Steps, error) {
	opts.withDefaults()
	steps := newSteps(opts)
	definition := workflow.NewWorkflow(WorkflowName, workflow.WithLogger(opts.Logger)).
		Step(steps.Analyze).
		Then(steps.Moderate).
		Then(steps.Apply)
	if err := definition.Commit(); err != nil {
		return nil, nil, err
	}
	return definition, steps, nil
}

func newSteps(opts Options) *Steps {
	steps := &Steps{}

	steps.Analyze = workflow.NewStep(StepAnalyze,
		func(ctx context.Context, rc *workflow.RunContext) (workflow.Result[Analysis], error) {
			input, err := workflow.TriggerAs[ContentInput](rc)
			if err != nil {
				return workflow.Result[Analysis]{}, errors.WithMessage(ErrContentMissing, err.Error())
			}
			if input.Content == "" {
				return workflow.Result[Analysis]{}, ErrContentMissing
			}
			score, err := opts.Scorer.Score(ctx, input.Content)
			if err != nil {
				return workflow.Result[Analysis]{}, errors.WithMessage(err, "score content failed")
			}
			analysis := Analysis{
				Content:           input.Content,
				AIAnalysisScore:   score,
				FlaggedCategories: FlagCategories(score),
			}
			rc.Logger().InfoContext(ctx, "content analyzed",
				slog.Float64("score", score),
				slog.Any("flags", analysis.FlaggedCategories),
			)
			return workflow.Complete(analysis), nil
		},
		workflow.WithDescription("コンテンツのリスクを分析します"),
	)

	steps.Moderate = workflow.NewStep(StepModerate,
		func(ctx context.Context, rc *workflow.RunContext) (workflow.Result[ModerationResult], error) {
			analysis, err := workflow.StepOutput(rc, steps.Analyze)
			if err != nil {
				return workflow.Result[ModerationResult]{}, err
			}
			if !opts.needsReview(analysis) {
				return workflow.Complete(ModerationResult{
					ModerationResult: ResultApproved,
					ModeratedContent: analysis.Content,
					Notes:            "Automatically approved (low risk score)",
				}), nil
			}
			decision, resumed, err := workflow.ResumeInputAs[Decision](rc)
			if err != nil {
				return workflow.Result[ModerationResult]{}, err
			}
			if !resumed {
				return workflow.Suspend[ModerationResult](ReviewRequest{
					Content:           analysis.Content,
					AIScore:           analysis.AIAnalysisScore,
					FlaggedCategories: analysis.FlaggedCategories,
					Message:           ReviewMessage,
				}), nil
			}
			rc.Logger().InfoContext(ctx, "moderator decision received", slog.String("decision", decision.ModeratorDecision))
			return workflow.Complete(applyDecision(analysis, decision)), nil
		},
		workflow.WithDescription("人間のモデレーターが判断します"),
	)

	steps.Apply = workflow.NewStep(StepApply,
		func(ctx context.Context, rc *workflow.RunContext) (workflow.Result[Outcome], error) {
			analysis, err := workflow.StepOutput(rc, steps.Analyze)
			if err != nil {
				return workflow.Result[Outcome]{}, err
			}
			result, err := workflow.StepOutput(rc, steps.Moderate)
			if err != nil {
				return workflow.Result[Outcome]{}, err
			}
			outcome := buildOutcome(analysis, result, opts.Now())
			rc.Logger().InfoContext(ctx, "moderation applied", slog.String("state", outcome.State))
			return workflow.Complete(outcome), nil
		},
		workflow.WithDescription("モデレーション結果を適用します"),
	)
	return steps
}

// applyDecision 把审核人员的决定转成审核结果，未知的决定按拒绝处理
func applyDecision(analysis Analysis, decision Decision) ModerationResult {
	switch decision.ModeratorDecision {
	case DecisionApprove:
		return ModerationResult{
			ModerationResult: ResultApproved,
			ModeratedContent: analysis.Content,
			Notes:            notesOr(decision.ModeratorNotes, "Approved by moderator"),
		}
	case DecisionReject:
		return ModerationResult{
			ModerationResult: ResultRejected,
			Notes:            notesOr(decision.ModeratorNotes, "Rejected by moderator"),
		}
	case DecisionModify:
		content := decision.ModifiedContent
		if content == "" {
			content = analysis.Content
		}
		return ModerationResult{
			ModerationResult: ResultModified,
			ModeratedContent: content,
			Notes:            notesOr(decision.ModeratorNotes, "Modified by moderator"),
		}
	}
	return ModerationResult{
		ModerationResult: ResultRejected,
		Notes:            "Invalid moderator decision",
	}
}

func notesOr(notes, fallback string) string {
	if notes == "" {
		return fallback
	}
	return notes
}

func buildOutcome(analysis Analysis, result ModerationResult, now time.Time) Outcome {
	outcome := Outcome{
		AuditLog: AuditLog{
			OriginalContent:  analysis.Content,
			ModerationResult: result.ModerationResult,
			AIScore:          analysis.AIAnalysisScore,
			Timestamp:        now,
		},
	}
	switch result.ModerationResult {
	case ResultApproved:
		outcome.FinalStatus = "コンテンツが公開されました"
		outcome.State = StatePublished
		outcome.Content = result.ModeratedContent
	case ResultModified:
		outcome.FinalStatus = "コンテンツが修正され公開されました"
		outcome.State = StateModified
		outcome.Content = result.ModeratedContent
	case ResultRejected:
		outcome.FinalStatus = "コンテンツが拒否されました"
		outcome.State = StateRejected
	default:
		outcome.FinalStatus = "モデレーションプロセスでエラーが発生しました"
		outcome.State = StateError
		outcome.AuditLog.ModerationResult = "unknown"
	}
	return outcome
}
