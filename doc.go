// Package workflow 提供线性的工作流编排功能。
//
// 工作流是一条有序的节点链，每个节点是一个类型化的 workflow.Step[O]，
// 可以读取触发数据和前面节点的输出。节点可以挂起等待外部输入，
// 运行实例通过 Resume 从挂起的节点继续执行。
//
// 主要特性：
//   - 类型化节点：节点输出按 validate 标签校验之后才写入结果
//   - 挂起/恢复：人工审核之类的场景，挂起数据和恢复数据都可以是任意类型
//   - 分批并发：BatchExecutor 按固定并发数分批执行，失败的子任务用 fallback 代替
//   - 运行锁：本地锁和分布式锁(Redis)，保证同一个运行实例的 Start/Resume 串行
//
// 基础使用示例:
//
//	package main
//
//	import (
//	    "context"
//	    "fmt"
//
//	    "github.com/blingmoon/stepchain/workflow"
//	)
//
//	type Greeting struct {
//	    Text string `json:"text" validate:"required"`
//	}
//
//	func main() {
//	    greet := workflow.NewStep("greet", func(ctx context.Context, rc *workflow.RunContext) (workflow.Result[Greeting], error) {
//	        name, err := workflow.TriggerAs[string](rc)
//	        if err != nil {
//	            return workflow.Result[Greeting]{}, err
//	        }
//	        return workflow.Complete(Greeting{Text: "hello " + name}), nil
//	    })
//	    approve := workflow.NewStep("approve", func(ctx context.Context, rc *workflow.RunContext) (workflow.Result[bool], error) {
//	        ok, resumed, err := workflow.ResumeInputAs[bool](rc)
//	        if err != nil {
//	            return workflow.Result[bool]{}, err
//	        }
//	        if !resumed {
//	            greeting, _ := workflow.StepOutput(rc, greet)
//	            return workflow.Suspend[bool](greeting), nil
//	        }
//	        return workflow.Complete(ok), nil
//	    })
//
//	    definition := workflow.NewWorkflow("greeting").Step(greet).Then(approve)
//	    if err := definition.Commit(); err != nil {
//	        panic(err)
//	    }
//	    run, _ := definition.CreateRun()
//	    snapshot, _ := run.Start(context.Background(), "stepchain")
//	    fmt.Println(snapshot.Status, snapshot.SuspendedStepID) // suspended approve
//
//	    snapshot, _ = run.Resume(context.Background(), "approve", true)
//	    fmt.Println(snapshot.Status) // success
//	}
//
// 完整的例子见 examples/with-moderation 和 examples/with-quiz。
package workflow
