package workflow

import (
	"github.com/mohae/deepcopy"
)

// Snapshot 运行实例在某个时刻的只读视图
// 节点结果和挂起数据都是深拷贝，修改快照不会影响 Run
// 结构体的非导出字段不参与拷贝，节点输出应该只用导出字段
type Snapshot struct {
	RunID        string
	WorkflowName string
	Status       RunStatus
	StepIDs      []string // 链的顺序
	StepStatus   map[string]StepStatus
	StepResults  map[string]any

	SuspendedStepID string // 为空表示没有挂起的节点
	SuspendPayload  any

	FailedStepID string // 为空表示没有失败的节点
	Error        string

	CreatedAt int64
	UpdatedAt int64
}

// Snapshot 获取当前运行状态的快照
func (r *Run) Snapshot() *Snapshot {
	snapshot := &Snapshot{
		RunID:           r.id,
		WorkflowName:    r.workflow.name,
		Status:          r.Status(),
		StepIDs:         r.workflow.StepIDs(),
		StepStatus:      make(map[string]StepStatus, len(r.stepStatus)),
		StepResults:     make(map[string]any, len(r.stepResults)),
		SuspendedStepID: r.suspendedStepID,
		SuspendPayload:  copyValue(r.suspendPayload),
		FailedStepID:    r.failedStepID,
		CreatedAt:       r.createdAt,
		UpdatedAt:       r.updatedAt,
	}
	for k, v := range r.stepStatus {
		snapshot.StepStatus[k] = v
	}
	for k, v := range r.stepResults {
		snapshot.StepResults[k] = copyValue(v)
	}
	if r.failure != nil {
		snapshot.Error = r.failure.Error()
	}
	return snapshot
}

// copyValue 保持原来的类型深拷贝一份
func copyValue(v any) any {
	switch p := v.(type) {
	case nil:
		return nil
	case *JSONContext:
		if p == nil {
			return p
		}
		// data 是非导出字段
		return p.Clone()
	}
	return deepcopy.Copy(v)
}

// IsSuspended 是否有挂起的节点
func (s *Snapshot) IsSuspended() bool { return s.SuspendedStepID != "" }

// IsFailed 是否失败
func (s *Snapshot) IsFailed() bool { return s.FailedStepID != "" }

// IsCompleted 所有节点都已完成
func (s *Snapshot) IsCompleted() bool { return s.Status == RunStatusSuccess }

// Result 获取节点输出，节点没有成功时返回 false
func (s *Snapshot) Result(stepID string) (any, bool) {
	if s.StepStatus[stepID] != StepStatusSuccess {
		return nil, false
	}
	v, ok := s.StepResults[stepID]
	return v, ok
}

// SnapshotResult 类型化地从快照中取节点输出
func SnapshotResult[O any](s *Snapshot, step *Step[O]) (O, bool) {
	var zero O
	raw, ok := s.Result(step.ID())
	if !ok {
		return zero, false
	}
	v, err := PayloadAs[O](raw)
	if err != nil {
		return zero, false
	}
	return v, true
}
