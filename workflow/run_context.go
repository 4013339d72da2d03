package workflow

import (
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
)

// RunContext 节点执行时拿到的上下文
// 可以读取触发数据、任意前置节点的输出、以及 resume 时外部传入的数据
type RunContext struct {
	run         *Run
	stepID      string
	resumeInput any
	resumed     bool
	logger      *slog.Logger
}

func (rc *RunContext) RunID() string        { return rc.run.id }
func (rc *RunContext) StepID() string       { return rc.stepID }
func (rc *RunContext) WorkflowName() string { return rc.run.workflow.name }
func (rc *RunContext) TriggerInput() any    { return rc.run.triggerInput }

// Logger 带 run_id/step_id 的 logger
func (rc *RunContext) Logger() *slog.Logger { return rc.logger }

// StepResult 获取前置节点的输出，只有状态为 success 的节点才有输出
func (rc *RunContext) StepResult(stepID string) (any, bool) {
	if rc.run.stepStatus[stepID] != StepStatusSuccess {
		return nil, false
	}
	output, ok := rc.run.stepResults[stepID]
	return output, ok
}

// ResumeInput resume 时外部传入的数据，首次执行时返回 false
func (rc *RunContext) ResumeInput() (any, bool) {
	return rc.resumeInput, rc.resumed
}

// IsResumed 当前是否是 resume 触发的执行
func (rc *RunContext) IsResumed() bool { return rc.resumed }

// StepOutput 类型化地获取前置节点输出
// 前置节点没有输出时返回 ErrMissingPriorResult，节点应直接返回该错误让节点失败
func StepOutput[O any](rc *RunContext, step *Step[O]) (O, error) {
	var zero O
	if step == nil {
		return zero, errors.WithMessage(ErrInvalidStep, "StepOutput: step is nil")
	}
	return StepOutputByID[O](rc, step.ID())
}

// StepOutputByID 按节点ID获取前置节点输出
func StepOutputByID[O any](rc *RunContext, stepID string) (O, error) {
	var zero O
	raw, ok := rc.StepResult(stepID)
	if !ok {
		return zero, errors.WithMessagef(ErrMissingPriorResult, "step %s requires result of %s", rc.stepID, stepID)
	}
	output, err := PayloadAs[O](raw)
	if err != nil {
		return zero, errors.WithMessagef(err, "step %s reads result of %s", rc.stepID, stepID)
	}
	return output, nil
}

// TriggerAs 把触发数据转成指定类型
func TriggerAs[T any](rc *RunContext) (T, error) {
	return PayloadAs[T](rc.run.triggerInput)
}

// ResumeInputAs 把 resume 数据转成指定类型，第二个返回值表示是否是 resume
func ResumeInputAs[T any](rc *RunContext) (T, bool, error) {
	var zero T
	if !rc.resumed {
		return zero, false, nil
	}
	v, err := PayloadAs[T](rc.resumeInput)
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}

// PayloadAs 把任意的负载数据转成 T
// 1. 本身就是 T 直接返回
// 2. 动态的 json 形式数据(map、[]byte、json.RawMessage、*JSONContext) 通过 JSONContext 反序列化
func PayloadAs[T any](payload any) (T, error) {
	var zero T
	if v, ok := payload.(T); ok {
		return v, nil
	}
	var ret T
	var err error
	switch p := payload.(type) {
	case nil:
		return zero, errors.WithMessagef(ErrPayloadType, "payload is nil, want %T", zero)
	case *JSONContext:
		err = p.Unmarshal(&ret)
	case map[string]any:
		err = NewJSONContextFromMap(p).Unmarshal(&ret)
	case []byte:
		err = json.Unmarshal(p, &ret)
	case json.RawMessage:
		err = json.Unmarshal(p, &ret)
	default:
		// 其他的类型(比如别的结构体、切片)走一遍 json
		var b []byte
		b, err = json.Marshal(p)
		if err == nil {
			err = json.Unmarshal(b, &ret)
		}
	}
	if err != nil {
		return zero, errors.Wrapf(ErrPayloadType, "convert %T to %T failed: %v", payload, zero, err)
	}
	return ret, nil
}
