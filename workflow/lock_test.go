package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunLock(t *testing.T, lock RunLock) {
	ctx := context.Background()
	key := RunLockKey("run-1")

	t.Run("持有锁时其他调用立即失败", func(t *testing.T) {
		err := lock.NonBlockingSynchronized(ctx, key, time.Minute, func(ctx context.Context) error {
			return lock.NonBlockingSynchronized(context.Background(), key, time.Minute, func(ctx context.Context) error {
				return nil
			})
		})
		require.ErrorIs(t, err, ErrRunLocked)
	})

	t.Run("同一个ctx可以重入", func(t *testing.T) {
		called := false
		err := lock.NonBlockingSynchronized(ctx, key, time.Minute, func(ctx context.Context) error {
			return lock.NonBlockingSynchronized(ctx, key, time.Minute, func(ctx context.Context) error {
				called = true
				return nil
			})
		})
		require.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("释放之后可以再次获取", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			err := lock.NonBlockingSynchronized(ctx, key, time.Minute, func(ctx context.Context) error { return nil })
			require.NoError(t, err)
		}
	})

	t.Run("不同的key互不影响", func(t *testing.T) {
		err := lock.NonBlockingSynchronized(ctx, key, time.Minute, func(ctx context.Context) error {
			return lock.NonBlockingSynchronized(context.Background(), RunLockKey("run-2"), time.Minute, func(ctx context.Context) error {
				return nil
			})
		})
		require.NoError(t, err)
	})
}

func TestLocalRunLock(t *testing.T) {
	lock := NewLocalRunLock(nil)
	testRunLock(t, lock)

	t.Run("超时自动释放", func(t *testing.T) {
		key := RunLockKey("expire")
		release := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = lock.NonBlockingSynchronized(context.Background(), key, 20*time.Millisecond, func(ctx context.Context) error {
				<-release
				return nil
			})
		}()
		require.Eventually(t, func() bool {
			return lock.NonBlockingSynchronized(context.Background(), key, time.Minute, func(ctx context.Context) error { return nil }) == nil
		}, time.Second, 10*time.Millisecond)
		close(release)
		<-done
	})
}

func TestRedisRunLock(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	lock := NewRedisRunLock(client, nil)
	testRunLock(t, lock)

	t.Run("释放之后key被删除", func(t *testing.T) {
		key := RunLockKey("cleanup")
		err := lock.NonBlockingSynchronized(context.Background(), key, time.Minute, func(ctx context.Context) error {
			assert.True(t, server.Exists(key))
			return nil
		})
		require.NoError(t, err)
		assert.False(t, server.Exists(key))
	})
}
