package workflow

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrRunLocked = errors.New("run is locked")
)

// RunLock 串行化同一个 Run 的 Start/Resume
// 引擎本身不加锁，由持有 Run 的一方(比如应用层的 service)在调用前拿锁
type RunLock interface {
	// NonBlockingSynchronized
	//  @Description:  1.非阻塞同步块，没有拿到锁立刻返回 ErrRunLocked
	//                 2.同一个 ctx 链路上可以重入
	//  @param ctx 原来的ctx
	//  @param key 锁的key，一般是 RunLockKey(runID)
	//  @param maxHold 锁最长持有时间，超过之后自动释放
	//  @param f 具体执行函数的闭包
	//  @return error
	NonBlockingSynchronized(ctx context.Context, key string, maxHold time.Duration, f func(context.Context) error) error
}

type lockCtxKey string

// RunLockKey 运行实例对应的锁 key
func RunLockKey(runID string) string {
	return "stepchain:run:" + runID
}

func randomLockValue() string {
	return fmt.Sprintf("%d_%d", rand.Int(), time.Now().UnixNano())
}

// heldLockValue 当前 ctx 是否已经持有 key 对应的锁
func heldLockValue(ctx context.Context, key string) (string, bool) {
	value, ok := ctx.Value(lockCtxKey(key)).(string)
	return value, ok
}
