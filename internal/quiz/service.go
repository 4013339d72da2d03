package quiz

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/blingmoon/stepchain/internal/archive"
	"github.com/blingmoon/stepchain/workflow"
	"github.com/pkg/errors"
)

// RunResult 一次流水线运行的结果
type RunResult struct {
	RunID    string
	Snapshot *workflow.Snapshot
	QuizSet  *QuizSet
	// 落库之后的记录ID，没有 repo 时为 0
	ArchiveID int64
}

type Service struct {
	definition *workflow.Workflow
	steps      *Steps
	repo       archive.Repo
	logger     *slog.Logger
}

// NewService repo 可以为空，为空时不落库
func NewService(definition *workflow.Workflow, steps *Steps, repo archive.Repo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{definition: definition, steps: steps, repo: repo, logger: logger}
}

// Run 执行一次完整的流水线，成功后把问题集落库
// 失败时返回的 RunResult 里带着快照，可以看到失败的节点和已经完成的节点结果
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	run, err := s.definition.CreateRun()
	if err != nil {
		return nil, err
	}
	result := &RunResult{RunID: run.ID()}
	snapshot, err := run.Start(ctx, nil)
	result.Snapshot = snapshot
	if err != nil {
		return result, errors.WithMessagef(err, "quiz run failed, runID: %s", run.ID())
	}
	quizSet, ok := workflow.SnapshotResult(snapshot, s.steps.Integrate)
	if !ok {
		return result, errors.Errorf("quiz run finished without quiz set, runID: %s, status: %s", run.ID(), snapshot.Status)
	}
	result.QuizSet = &quizSet
	if s.repo == nil {
		return result, nil
	}
	po, err := s.archive(ctx, run.ID(), &quizSet)
	if err != nil {
		return result, err
	}
	result.ArchiveID = po.ID
	s.logger.InfoContext(ctx, "quiz set archived",
		slog.String("run_id", run.ID()),
		slog.Int64("archive_id", po.ID),
		slog.Int("items", len(quizSet.Items)),
	)
	return result, nil
}

func (s *Service) archive(ctx context.Context, runID string, quizSet *QuizSet) (*archive.QuizSetPo, error) {
	items, err := json.Marshal(quizSet.Items)
	if err != nil {
		return nil, errors.WithMessage(err, "marshal quiz items failed")
	}
	po, err := s.repo.CreateQuizSet(ctx, &archive.QuizSetPo{
		RunID:       runID,
		Title:       quizSet.Title,
		Description: quizSet.Description,
		Items:       items,
		ItemCount:   int64(len(quizSet.Items)),
		Summary:     quizSet.Summary,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "archive quiz set failed, runID: %s", runID)
	}
	return po, nil
}

// History 最近的问题集
func (s *Service) History(ctx context.Context, page, size int64) ([]*archive.QuizSetPo, error) {
	if s.repo == nil {
		return nil, errors.New("quiz: archive is not configured")
	}
	desc := false
	return s.repo.QueryQuizSet(ctx, &archive.QueryQuizSetParams{
		OrderbyIDAsc: &desc,
		Page:         &archive.Pager{Page: page, Size: size},
	})
}
