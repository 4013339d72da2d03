package workflow

import (
	"context"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validatorUtil = validator.New()

// StepNode 链上节点的类型擦除形式，由 Step[O] 实现
type StepNode interface {
	ID() string
	Description() string
	run(ctx context.Context, rc *RunContext) (stepOutcome, error)
}

// stepOutcome 引擎内部看到的节点执行结果
type stepOutcome struct {
	output    any
	suspended bool
	payload   any
}

// Result 节点函数的返回值，二选一：完成并给出输出，或者挂起并给出挂起数据
type Result[O any] struct {
	output    O
	suspended bool
	payload   any
}

// Complete 节点完成
func Complete[O any](output O) Result[O] {
	return Result[O]{output: output}
}

// Suspend 节点挂起，payload 描述需要外部提供什么
// 例如: return workflow.Suspend[Decision](ReviewRequest{...}), nil
func Suspend[O any](payload any) Result[O] {
	return Result[O]{suspended: true, payload: payload}
}

func (r Result[O]) IsSuspended() bool { return r.suspended }
func (r Result[O]) Output() O        { return r.output }
func (r Result[O]) Payload() any     { return r.payload }

// StepFunc 节点执行函数
type StepFunc[O any] func(ctx context.Context, rc *RunContext) (Result[O], error)

// OutputContract 输出约束，写入 stepResults 之前调用
type OutputContract func(output any) error

type StepOption func(*stepOptions)

type stepOptions struct {
	description string
	contract    OutputContract
}

// WithDescription 节点描述
func WithDescription(description string) StepOption {
	return func(o *stepOptions) { o.description = description }
}

// WithOutputContract 覆盖默认的输出约束(默认是 validate 标签校验)
// 传 nil 表示不做校验
func WithOutputContract(contract OutputContract) StepOption {
	return func(o *stepOptions) { o.contract = contract }
}

// Step 类型化的节点定义，创建后不可变
type Step[O any] struct {
	id          string
	description string
	contract    OutputContract
	execute     StepFunc[O]
}

// NewStep 创建节点
func NewStep[O any](id string, execute StepFunc[O], opts ...StepOption) *Step[O] {
	options := &stepOptions{contract: ValidateStructTags}
	for _, opt := range opts {
		opt(options)
	}
	return &Step[O]{
		id:          id,
		description: options.description,
		contract:    options.contract,
		execute:     execute,
	}
}

func (s *Step[O]) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

func (s *Step[O]) Description() string {
	if s == nil {
		return ""
	}
	return s.description
}

func (s *Step[O]) run(ctx context.Context, rc *RunContext) (stepOutcome, error) {
	if s.execute == nil {
		return stepOutcome{}, errors.WithMessagef(ErrInvalidStep, "step %s has no execute function", s.id)
	}
	result, err := s.execute(ctx, rc)
	if err != nil {
		return stepOutcome{}, err
	}
	if result.suspended {
		return stepOutcome{suspended: true, payload: result.payload}, nil
	}
	if s.contract != nil {
		if err := s.contract(result.output); err != nil {
			return stepOutcome{}, errors.Wrapf(ErrOutputContractViolation, "step %s: %v", s.id, err)
		}
	}
	return stepOutcome{output: result.output}, nil
}

// ValidateStructTags 默认的输出约束
// 结构体(或指针)直接按 validate 标签校验，切片/数组逐个元素校验，其他类型不校验
func ValidateStructTags(output any) error {
	if output == nil {
		return nil
	}
	v := reflect.ValueOf(output)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct:
		return validatorUtil.Struct(v.Interface())
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := ValidateStructTags(v.Index(i).Interface()); err != nil {
				return errors.WithMessagef(err, "index %d", i)
			}
		}
	}
	return nil
}
