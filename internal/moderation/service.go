package moderation

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/blingmoon/stepchain/internal/archive"
	"github.com/blingmoon/stepchain/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validatorUtil = validator.New()

var (
	ErrRunNotFound = errors.New("moderation run not found")
)

// PendingReview 等待人工审核的运行实例
type PendingReview struct {
	RunID     string
	ContentID string
	Request   ReviewRequest
	CreatedAt int64
}

type trackedRun struct {
	run       *workflow.Run
	contentID string
	// 挂起时的快照，读取列表时不碰正在执行的 run
	snapshot *workflow.Snapshot
}

// Service 管理审核流程的运行实例
// 挂起的运行实例只保存在内存里，进程重启之后会丢失
type Service struct {
	definition *workflow.Workflow
	steps      *Steps
	lock       workflow.RunLock
	lockHold   time.Duration
	repo       archive.Repo
	logger     *slog.Logger

	mu   sync.RWMutex
	runs map[string]*trackedRun // runID -> 挂起中的运行实例
}

type ServiceOptions struct {
	Lock     workflow.RunLock
	LockHold time.Duration
	// 为空时不写审计记录
	Repo   archive.Repo
	Logger *slog.Logger
}

func NewService(definition *workflow.Workflow, steps *Steps, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Lock == nil {
		opts.Lock = workflow.NewLocalRunLock(opts.Logger)
	}
	if opts.LockHold <= 0 {
		opts.LockHold = 5 * time.Minute
	}
	return &Service{
		definition: definition,
		steps:      steps,
		lock:       opts.Lock,
		lockHold:   opts.LockHold,
		repo:       opts.Repo,
		logger:     opts.Logger,
		runs:       make(map[string]*trackedRun),
	}
}

// Submit 提交内容开始审核，需要人工审核时返回挂起状态的快照
func (s *Service) Submit(ctx context.Context, input ContentInput) (*workflow.Snapshot, error) {
	if err := validatorUtil.Struct(input); err != nil {
		return nil, errors.WithMessage(ErrContentMissing, err.Error())
	}
	run, err := s.definition.CreateRun()
	if err != nil {
		return nil, err
	}
	var snapshot *workflow.Snapshot
	err = s.lock.NonBlockingSynchronized(ctx, workflow.RunLockKey(run.ID()), s.lockHold, func(ctx context.Context) error {
		var runErr error
		snapshot, runErr = run.Start(ctx, input)
		if runErr != nil {
			return runErr
		}
		return s.afterExecute(ctx, run, input.ContentID, snapshot)
	})
	return snapshot, err
}

// Resume 提交审核人员的决定
func (s *Service) Resume(ctx context.Context, runID string, decision Decision) (*workflow.Snapshot, error) {
	if err := validatorUtil.Struct(decision); err != nil {
		return nil, errors.WithMessage(err, "invalid moderator decision")
	}
	s.mu.RLock()
	tracked, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.WithMessagef(ErrRunNotFound, "runID: %s", runID)
	}
	var snapshot *workflow.Snapshot
	err := s.lock.NonBlockingSynchronized(ctx, workflow.RunLockKey(runID), s.lockHold, func(ctx context.Context) error {
		var runErr error
		snapshot, runErr = tracked.run.Resume(ctx, StepModerate, decision)
		if runErr != nil {
			if workflow.IsOverRunStatus(snapshot.Status) {
				// 失败或者已经被别人完成，不能再 resume
				s.forget(runID)
			}
			return runErr
		}
		return s.afterExecute(ctx, tracked.run, tracked.contentID, snapshot)
	})
	return snapshot, err
}

// afterExecute 挂起的记下来，结束的写审计记录
func (s *Service) afterExecute(ctx context.Context, run *workflow.Run, contentID string, snapshot *workflow.Snapshot) error {
	if snapshot.IsSuspended() {
		s.mu.Lock()
		s.runs[run.ID()] = &trackedRun{run: run, contentID: contentID, snapshot: snapshot}
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "moderation waiting for review", slog.String("run_id", run.ID()))
		return nil
	}
	s.forget(run.ID())
	if !snapshot.IsCompleted() {
		return nil
	}
	return s.archive(ctx, run.ID(), contentID, snapshot)
}

func (s *Service) forget(runID string) {
	s.mu.Lock()
	delete(s.runs, runID)
	s.mu.Unlock()
}

func (s *Service) archive(ctx context.Context, runID, contentID string, snapshot *workflow.Snapshot) error {
	if s.repo == nil {
		return nil
	}
	analysis, _ := workflow.SnapshotResult(snapshot, s.steps.Analyze)
	result, _ := workflow.SnapshotResult(snapshot, s.steps.Moderate)
	outcome, ok := workflow.SnapshotResult(snapshot, s.steps.Apply)
	if !ok {
		return errors.Errorf("moderation outcome missing, runID: %s", runID)
	}
	flags, err := json.Marshal(analysis.FlaggedCategories)
	if err != nil {
		return errors.WithMessage(err, "marshal flags failed")
	}
	// 同一个运行实例只记录一次
	err = s.repo.Transaction(ctx, func(ctx context.Context) error {
		count, err := s.repo.CountModerationAudit(ctx, &archive.QueryModerationAuditParams{RunID: &runID})
		if err != nil {
			return err
		}
		if count > 0 {
			s.logger.WarnContext(ctx, "[warn]moderation audit already archived", slog.String("run_id", runID))
			return nil
		}
		_, err = s.repo.CreateModerationAudit(ctx, &archive.ModerationAuditPo{
			RunID:           runID,
			ContentID:       contentID,
			OriginalContent: outcome.AuditLog.OriginalContent,
			FinalContent:    outcome.Content,
			FinalStatus:     outcome.State,
			Action:          result.ModerationResult,
			RiskScore:       outcome.AuditLog.AIScore,
			Flags:           flags,
			ModeratorNotes:  result.Notes,
			ModeratedAt:     outcome.AuditLog.Timestamp.Unix(),
		})
		return err
	})
	if err != nil {
		return errors.WithMessagef(err, "archive moderation audit failed, runID: %s", runID)
	}
	return nil
}

// Pending 等待审核的列表，按创建时间排序
func (s *Service) Pending() []PendingReview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]PendingReview, 0, len(s.runs))
	for runID, tracked := range s.runs {
		snapshot := tracked.snapshot
		request, err := workflow.PayloadAs[ReviewRequest](snapshot.SuspendPayload)
		if err != nil {
			s.logger.Warn("[warn]unexpected suspend payload", slog.String("run_id", runID), slog.String("err", err.Error()))
			continue
		}
		ret = append(ret, PendingReview{
			RunID:     runID,
			ContentID: tracked.contentID,
			Request:   request,
			CreatedAt: snapshot.CreatedAt,
		})
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt == ret[j].CreatedAt {
			return ret[i].RunID < ret[j].RunID
		}
		return ret[i].CreatedAt < ret[j].CreatedAt
	})
	return ret
}

// Snapshot 挂起中的运行实例最近一次挂起时的快照
func (s *Service) Snapshot(runID string) (*workflow.Snapshot, error) {
	s.mu.RLock()
	tracked, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.WithMessagef(ErrRunNotFound, "runID: %s", runID)
	}
	return tracked.snapshot, nil
}

// Audits 查询审计记录
func (s *Service) Audits(ctx context.Context, params *archive.QueryModerationAuditParams) ([]*archive.ModerationAuditPo, error) {
	if s.repo == nil {
		return nil, errors.New("moderation: archive is not configured")
	}
	return s.repo.QueryModerationAudit(ctx, params)
}
