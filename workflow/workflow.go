package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Option func(*Workflow)

// WithLogger 设置 logger，默认 slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Workflow 工作流定义，一条有序的节点链
// 通过 Step/Then 链式构建，Commit 之后冻结，不能再追加节点
// 链式调用中出现的第一个错误会被记录下来，通过 Err()/Commit() 返回 (类似 gorm 的 db.Error)
type Workflow struct {
	name    string
	steps   []StepNode
	stepIdx map[string]int
	sealed  bool
	err     error
	logger  *slog.Logger
}

func NewWorkflow(name string, opts ...Option) *Workflow {
	w := &Workflow{
		name:    name,
		steps:   make([]StepNode, 0),
		stepIdx: make(map[string]int),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workflow) Name() string { return w.name }
func (w *Workflow) Sealed() bool { return w.sealed }

// Err 链式构建过程中记录下来的错误
func (w *Workflow) Err() error { return w.err }

// StepIDs 按执行顺序返回节点ID
func (w *Workflow) StepIDs() []string {
	ret := make([]string, 0, len(w.steps))
	for _, step := range w.steps {
		ret = append(ret, step.ID())
	}
	return ret
}

// Step 设置链的第一个节点
func (w *Workflow) Step(first StepNode) *Workflow {
	if w.sealed {
		w.err = errors.WithMessagef(ErrDefinitionSealed, "Step failed, workflow: %s", w.name)
		return w
	}
	if w.err != nil {
		return w
	}
	if len(w.steps) > 0 {
		w.err = errors.WithMessagef(ErrChainAlreadyStarted, "Step failed, workflow: %s, use Then to append", w.name)
		return w
	}
	w.appendStep(first)
	return w
}

// Then 在链的末尾追加节点
func (w *Workflow) Then(next StepNode) *Workflow {
	if w.sealed {
		w.err = errors.WithMessagef(ErrDefinitionSealed, "Then failed, workflow: %s", w.name)
		return w
	}
	if w.err != nil {
		return w
	}
	w.appendStep(next)
	return w
}

func (w *Workflow) appendStep(step StepNode) {
	if step == nil {
		w.err = errors.WithMessagef(ErrInvalidStep, "step is nil, workflow: %s", w.name)
		return
	}
	if step.ID() == "" {
		w.err = errors.WithMessagef(ErrInvalidStep, "step id is empty, workflow: %s", w.name)
		return
	}
	if _, ok := w.stepIdx[step.ID()]; ok {
		w.err = errors.WithMessagef(ErrDuplicateStepID, "workflow: %s, step: %s", w.name, step.ID())
		return
	}
	w.stepIdx[step.ID()] = len(w.steps)
	w.steps = append(w.steps, step)
}

// Commit 冻结工作流定义，重复调用不报错
func (w *Workflow) Commit() error {
	if w.sealed {
		return nil
	}
	if w.err != nil {
		return errors.WithMessagef(w.err, "Commit failed, workflow: %s", w.name)
	}
	if len(w.steps) == 0 {
		return errors.WithMessagef(ErrEmptyDefinition, "Commit failed, workflow: %s", w.name)
	}
	w.sealed = true
	return nil
}

// CreateRun 创建一个运行实例，只有 commit 过的定义才能创建
func (w *Workflow) CreateRun() (*Run, error) {
	if !w.sealed {
		return nil, errors.WithMessagef(ErrDefinitionNotSealed, "CreateRun failed, workflow: %s", w.name)
	}
	if len(w.steps) == 0 {
		return nil, errors.WithMessagef(ErrEmptyDefinition, "CreateRun failed, workflow: %s", w.name)
	}
	run := &Run{
		id:          uuid.NewString(),
		workflow:    w,
		stepStatus:  make(map[string]StepStatus, len(w.steps)),
		stepResults: make(map[string]any, len(w.steps)),
		createdAt:   time.Now().Unix(),
	}
	for _, step := range w.steps {
		run.stepStatus[step.ID()] = StepStatusPending
	}
	run.logger = w.logger.With(slog.String("workflow", w.name), slog.String("run_id", run.id))
	return run, nil
}

// Run 工作流的一次运行
// 同一个 Run 的 Start/Resume 必须由调用方串行调用，引擎内部不加锁
type Run struct {
	id           string
	workflow     *Workflow
	triggerInput any
	started      bool

	stepStatus  map[string]StepStatus
	stepResults map[string]any

	suspendedStepID string
	suspendPayload  any
	failedStepID    string
	failure         error

	createdAt int64
	updatedAt int64
	logger    *slog.Logger
}

func (r *Run) ID() string              { return r.id }
func (r *Run) Workflow() *Workflow     { return r.workflow }
func (r *Run) SuspendedStepID() string { return r.suspendedStepID }

// Start 按链的顺序执行节点，直到全部完成、某个节点挂起或者失败
// 挂起时返回的 error 为 nil，通过快照判断挂起的节点
// 节点失败时返回 *StepError，快照中保留已经完成节点的结果
func (r *Run) Start(ctx context.Context, triggerInput any) (*Snapshot, error) {
	if r.started {
		return r.Snapshot(), errors.WithMessagef(ErrRunAlreadyStarted, "Start failed, runID: %s", r.id)
	}
	r.started = true
	r.triggerInput = triggerInput
	r.logger.DebugContext(ctx, "run started")
	err := r.executeFrom(ctx, 0, nil, false)
	return r.Snapshot(), err
}

// Resume 重新进入挂起的节点，resumeInput 在节点上下文中可见
// stepID 必须是当前挂起的节点，否则返回 ErrNoSuchSuspension 且不改变任何状态
func (r *Run) Resume(ctx context.Context, stepID string, resumeInput any) (*Snapshot, error) {
	if r.suspendedStepID == "" || r.suspendedStepID != stepID {
		return r.Snapshot(), errors.WithMessagef(ErrNoSuchSuspension, "Resume failed, runID: %s, stepID: %s, suspended: %q", r.id, stepID, r.suspendedStepID)
	}
	idx, ok := r.workflow.stepIdx[stepID]
	if !ok {
		// 不会出现这种情况
		return r.Snapshot(), errors.WithMessagef(ErrNoSuchSuspension, "Resume failed, step not in workflow, runID: %s, stepID: %s", r.id, stepID)
	}
	r.logger.InfoContext(ctx, "run resumed", slog.String("step_id", stepID))
	r.suspendedStepID = ""
	r.suspendPayload = nil
	err := r.executeFrom(ctx, idx, resumeInput, true)
	return r.Snapshot(), err
}

// executeFrom 从 startIdx 开始顺序执行，遇到挂起或者失败就停下来
// 只有第一个被执行的节点能看到 resumeInput
func (r *Run) executeFrom(ctx context.Context, startIdx int, resumeInput any, resumed bool) error {
	for i := startIdx; i < len(r.workflow.steps); i++ {
		step := r.workflow.steps[i]
		if r.stepStatus[step.ID()] == StepStatusSuccess {
			continue
		}
		rc := &RunContext{
			run:    r,
			stepID: step.ID(),
			logger: r.logger.With(slog.String("step_id", step.ID())),
		}
		if i == startIdx && resumed {
			rc.resumeInput = resumeInput
			rc.resumed = true
		}
		r.setStatus(step.ID(), StepStatusRunning)
		outcome, err := r.taskRun(ctx, step, rc)
		if err != nil {
			r.setStatus(step.ID(), StepStatusFailed)
			r.failedStepID = step.ID()
			r.failure = &StepError{StepID: step.ID(), Err: err}
			if IsSeriousError(err) {
				rc.logger.ErrorContext(ctx, "[error]step failed", slog.String("err", err.Error()))
			} else {
				rc.logger.WarnContext(ctx, "[warn]step failed", slog.String("err", err.Error()))
			}
			return r.failure
		}
		if outcome.suspended {
			r.setStatus(step.ID(), StepStatusSuspended)
			r.suspendedStepID = step.ID()
			r.suspendPayload = outcome.payload
			rc.logger.InfoContext(ctx, "step suspended")
			return nil
		}
		r.stepResults[step.ID()] = outcome.output
		r.setStatus(step.ID(), StepStatusSuccess)
		rc.logger.DebugContext(ctx, "step completed")
	}
	r.logger.DebugContext(ctx, "run completed")
	return nil
}

// taskRun 执行单个节点，panic 捕捉之后按失败处理
func (r *Run) taskRun(ctx context.Context, step StepNode, rc *RunContext) (outcome stepOutcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			rc.logger.ErrorContext(ctx, "step panic", slog.Any("panic", rec), slog.String("stack", string(stack)))
			err = errors.WithMessagef(ErrStepPanic, "panic: %v, runID: %s, stepID: %s", rec, r.id, step.ID())
		}
	}()
	return step.run(ctx, rc)
}

func (r *Run) setStatus(stepID string, status StepStatus) {
	from := r.stepStatus[stepID]
	if !canTransition(from, status) {
		// 状态机被破坏说明引擎有 bug
		panic(fmt.Sprintf("workflow: illegal step transition %s -> %s, runID: %s, stepID: %s", from, status, r.id, stepID))
	}
	r.stepStatus[stepID] = status
	r.updatedAt = time.Now().Unix()
}

// Status 推导整个运行实例的状态
func (r *Run) Status() RunStatus {
	if r.failedStepID != "" {
		return RunStatusFailed
	}
	if r.suspendedStepID != "" {
		return RunStatusSuspended
	}
	if !r.started {
		return RunStatusPending
	}
	for _, step := range r.workflow.steps {
		if r.stepStatus[step.ID()] != StepStatusSuccess {
			return RunStatusRunning
		}
	}
	return RunStatusSuccess
}

// StepError 节点失败的错误，记录失败的节点ID
type StepError struct {
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.StepID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
