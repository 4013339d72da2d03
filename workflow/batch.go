package workflow

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// BatchOutcome 单个子任务的结果
// Err 为 nil 表示成功，Value 是 op 的返回值；否则 Value 是 fallback 的返回值
type BatchOutcome[I any, O any] struct {
	Input I
	Value O
	Err   error
}

func (o BatchOutcome[I, O]) Failed() bool { return o.Err != nil }

// BatchOption 批量执行器的选项
type BatchOption func(*batchOptions)

type batchOptions struct {
	logger *slog.Logger
	name   string
}

// WithBatchLogger 设置 logger
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(o *batchOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBatchName 日志里用来区分批次的名字
func WithBatchName(name string) BatchOption {
	return func(o *batchOptions) { o.name = name }
}

// BatchExecutor 分批并发执行互相独立的子任务
// 每批最多 limit 个任务并发，一批全部结束之后才开始下一批
// 单个任务失败(返回错误或者 panic)不影响其他任务，用 fallback 生成替代值
type BatchExecutor[I any, O any] struct {
	limit    int
	fallback func(input I, err error) O
	logger   *slog.Logger
	name     string
}

// NewBatchExecutor limit <= 0 按 1 处理，fallback 为 nil 时失败任务的值为零值
func NewBatchExecutor[I any, O any](limit int, fallback func(input I, err error) O, opts ...BatchOption) *BatchExecutor[I, O] {
	if limit <= 0 {
		limit = 1
	}
	options := &batchOptions{logger: slog.Default(), name: "batch"}
	for _, opt := range opts {
		opt(options)
	}
	return &BatchExecutor[I, O]{
		limit:    limit,
		fallback: fallback,
		logger:   options.logger,
		name:     options.name,
	}
}

func (b *BatchExecutor[I, O]) Limit() int { return b.limit }

// Execute 执行所有任务，返回和 inputs 等长、顺序一致的结果
// ctx 结束之后还没开始的批次不再执行，对应的结果是 fallback 值
func (b *BatchExecutor[I, O]) Execute(ctx context.Context, inputs []I, op func(ctx context.Context, input I) (O, error)) []BatchOutcome[I, O] {
	outcomes := make([]BatchOutcome[I, O], len(inputs))
	for start := 0; start < len(inputs); start += b.limit {
		end := start + b.limit
		if end > len(inputs) {
			end = len(inputs)
		}
		if err := ctx.Err(); err != nil {
			// ctx 结束之后不再开始新的批次，剩下的直接用 fallback
			b.logger.WarnContext(ctx, "[warn]batch cancelled",
				slog.String("batch", b.name),
				slog.Int("skipped", len(inputs)-start),
				slog.String("err", err.Error()),
			)
			for i := start; i < len(inputs); i++ {
				outcomes[i] = b.fail(inputs[i], errors.WithMessagef(err, "batch %s task %d not started", b.name, i))
			}
			break
		}
		b.logger.DebugContext(ctx, "batch chunk started",
			slog.String("batch", b.name),
			slog.Int("from", start),
			slog.Int("to", end),
		)
		// 子任务的错误都在 outcome 里，不会让 errgroup 提前结束
		var g errgroup.Group
		for i := start; i < end; i++ {
			idx := i
			g.Go(func() error {
				outcomes[idx] = b.runOne(ctx, idx, inputs[idx], op)
				return nil
			})
		}
		_ = g.Wait()
	}
	return outcomes
}

func (b *BatchExecutor[I, O]) runOne(ctx context.Context, idx int, input I, op func(ctx context.Context, input I) (O, error)) (outcome BatchOutcome[I, O]) {
	outcome.Input = input
	defer func() {
		if rec := recover(); rec != nil {
			err := errors.WithMessagef(ErrStepPanic, "batch task %d panic: %v", idx, rec)
			b.logger.ErrorContext(ctx, "batch task panic",
				slog.String("batch", b.name),
				slog.Int("index", idx),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			outcome = b.fail(input, err)
		}
	}()
	if op == nil {
		return b.fail(input, errors.Errorf("batch %s: op is nil", b.name))
	}
	value, err := op(ctx, input)
	if err != nil {
		b.logger.WarnContext(ctx, "[warn]batch task failed",
			slog.String("batch", b.name),
			slog.Int("index", idx),
			slog.String("err", err.Error()),
		)
		return b.fail(input, err)
	}
	outcome.Value = value
	return outcome
}

func (b *BatchExecutor[I, O]) fail(input I, err error) BatchOutcome[I, O] {
	outcome := BatchOutcome[I, O]{Input: input, Err: err}
	if b.fallback != nil {
		outcome.Value = b.fallback(input, err)
	}
	return outcome
}

// Values 按顺序取出所有结果值(包括 fallback 值)
func Values[I any, O any](outcomes []BatchOutcome[I, O]) []O {
	ret := make([]O, 0, len(outcomes))
	for _, outcome := range outcomes {
		ret = append(ret, outcome.Value)
	}
	return ret
}

// Failures 失败的子任务
func Failures[I any, O any](outcomes []BatchOutcome[I, O]) []BatchOutcome[I, O] {
	ret := make([]BatchOutcome[I, O], 0)
	for _, outcome := range outcomes {
		if outcome.Failed() {
			ret = append(ret, outcome)
		}
	}
	return ret
}
