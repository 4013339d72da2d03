package workflow

import "github.com/pkg/errors"

var (
	// 定义相关的错误
	ErrDefinitionSealed    = errors.New("workflow definition sealed")      // commit 之后再追加节点
	ErrDuplicateStepID     = errors.New("duplicate step id")               // 同一条链上出现重复的节点ID
	ErrInvalidStep         = errors.New("invalid step")                    // 节点为空或者ID为空
	ErrChainAlreadyStarted = errors.New("workflow chain already started") // 链已经有起始节点了，只能用Then
	ErrEmptyDefinition     = errors.New("workflow definition has no steps")
	ErrDefinitionNotSealed = errors.New("workflow definition not committed")

	// 运行相关的错误
	ErrRunAlreadyStarted = errors.New("workflow run already started")
	// ErrNoSuchSuspension: resume 的节点不是当前挂起的节点，run 状态不会有任何变化
	ErrNoSuchSuspension = errors.New("no such suspension")
	// ErrMissingPriorResult: 节点依赖的前置节点结果不存在(没执行或者失败了)，当前节点按失败处理
	ErrMissingPriorResult = errors.New("missing prior step result")
	// ErrOutputContractViolation: 节点输出没有通过输出约束校验，节点按失败处理
	ErrOutputContractViolation = errors.New("step output contract violation")
	ErrStepPanic               = errors.New("step panic")
	ErrPayloadType             = errors.New("payload type mismatch")

	// ErrExternalCall: 外部调用失败(抓取文档、文本生成)
	// 批处理子任务中会被捕获并转成兜底结果，普通节点中直接让节点失败
	ErrExternalCall = errors.New("external call failed")
)

// StepStatus 节点在一次运行中的状态
type StepStatus = string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusSuccess   StepStatus = "success"
	StepStatusSuspended StepStatus = "suspended"
	StepStatusFailed    StepStatus = "failed"
)

// RunStatus 整个运行实例的状态，由节点状态推导出来
type RunStatus = string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSuspended RunStatus = "suspended"
	// 终止状态，不能再 resume
	RunStatusFailed RunStatus = "failed"
	// 终止状态，所有节点都成功
	RunStatusSuccess RunStatus = "success"
)

func IsOverRunStatus(status RunStatus) bool {
	return status == RunStatusFailed || status == RunStatusSuccess
}

func GetStepStatusText(status StepStatus) string {
	switch status {
	case StepStatusPending:
		return "等待中"
	case StepStatusRunning:
		return "运行中"
	case StepStatusSuccess:
		return "完成"
	case StepStatusSuspended:
		return "挂起"
	case StepStatusFailed:
		return "失败"
	}
	return "未知"
}

// canTransition 节点状态只能往前走，success/failed 之后不能再变化
func canTransition(from, to StepStatus) bool {
	switch from {
	case StepStatusPending:
		return to == StepStatusRunning
	case StepStatusRunning:
		return to == StepStatusSuccess || to == StepStatusSuspended || to == StepStatusFailed
	case StepStatusSuspended:
		return to == StepStatusRunning
	}
	return false
}

// IsSeriousError 判断是否是严重错误，严重错误打error级别日志，否则打warn级别日志
// 严重错误定义：需要开发人员介入处理
// 1. 工作流定义使用不正确，如重复节点、未commit
// 2. 节点之间的数据契约被破坏，如前置结果缺失、输出校验失败、panic
// 外部调用失败属于可预期的错误，不算严重错误
func IsSeriousError(err error) bool {
	if err == nil {
		return false
	}
	causeErr := errors.Cause(err)
	if errors.Is(causeErr, ErrExternalCall) || errors.Is(err, ErrExternalCall) {
		return false
	}
	if errors.Is(err, ErrDefinitionSealed) ||
		errors.Is(err, ErrDuplicateStepID) ||
		errors.Is(err, ErrInvalidStep) ||
		errors.Is(err, ErrEmptyDefinition) ||
		errors.Is(err, ErrDefinitionNotSealed) ||
		errors.Is(err, ErrMissingPriorResult) ||
		errors.Is(err, ErrOutputContractViolation) ||
		errors.Is(err, ErrStepPanic) {
		return true
	}
	return false
}
