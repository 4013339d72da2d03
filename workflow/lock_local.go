package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// NewLocalRunLock 进程内的锁，单实例部署时使用
func NewLocalRunLock(logger *slog.Logger) RunLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &localRunLock{logger: logger}
}

type localRunLock struct {
	locks     sync.Map // key -> *localLockEntry
	releaseMu sync.Mutex
	logger    *slog.Logger
}

type localLockEntry struct {
	mu    sync.Mutex
	value string // 持有者标识
	timer *time.Timer
}

func (l *localRunLock) NonBlockingSynchronized(ctx context.Context, key string, maxHold time.Duration, f func(context.Context) error) error {
	if _, held := heldLockValue(ctx, key); held {
		return f(ctx)
	}

	entryInterface, _ := l.locks.LoadOrStore(key, &localLockEntry{})
	entry := entryInterface.(*localLockEntry)
	if !entry.mu.TryLock() {
		return errors.WithMessagef(ErrRunLocked, "[localRunLock] key: %s", key)
	}
	if current, ok := l.locks.Load(key); !ok || current != entry {
		// 拿到的是刚被释放并移出 map 的旧 entry
		entry.mu.Unlock()
		return errors.WithMessagef(ErrRunLocked, "[localRunLock] key: %s, released concurrently", key)
	}

	value := randomLockValue()
	l.releaseMu.Lock()
	entry.value = value
	if maxHold > 0 {
		entry.timer = time.AfterFunc(maxHold, func() {
			l.logger.Warn("[warn]local run lock expired", slog.String("key", key))
			l.release(key, entry, value)
		})
	}
	l.releaseMu.Unlock()
	defer l.release(key, entry, value)
	return f(context.WithValue(ctx, lockCtxKey(key), value))
}

func (l *localRunLock) release(key string, entry *localLockEntry, value string) {
	// 超时释放和正常释放可能同时发生
	l.releaseMu.Lock()
	defer l.releaseMu.Unlock()
	current, ok := l.locks.Load(key)
	if !ok || current != entry {
		// 已经被超时释放
		return
	}
	if entry.value != value {
		l.logger.Warn("[warn]local run lock value mismatch", slog.String("key", key))
		return
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.value = ""
	l.locks.Delete(key)
	entry.mu.Unlock()
}
