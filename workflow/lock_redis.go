package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`

// NewRedisRunLock 基于 redis SETNX 的锁，多实例部署时使用
func NewRedisRunLock(redisClient redis.Cmdable, logger *slog.Logger) RunLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisRunLock{redisClient: redisClient, logger: logger}
}

type redisRunLock struct {
	redisClient redis.Cmdable
	logger      *slog.Logger
}

func (d *redisRunLock) NonBlockingSynchronized(ctx context.Context, key string, maxHold time.Duration, f func(context.Context) error) error {
	if _, held := heldLockValue(ctx, key); held {
		return f(ctx)
	}
	value := randomLockValue()
	locked, err := d.redisClient.SetNX(ctx, key, value, maxHold).Result()
	if err != nil {
		return errors.WithMessagef(ErrRunLocked, "[redisRunLock] key: %s, err: %v", key, err)
	}
	if !locked {
		return errors.WithMessagef(ErrRunLocked, "[redisRunLock] key: %s", key)
	}
	defer d.release(key, value)
	return f(context.WithValue(ctx, lockCtxKey(key), value))
}

func (d *redisRunLock) release(key string, value string) {
	// ctx 可能已经被 cancel，释放锁用新的 ctx
	reply, err := d.redisClient.Eval(context.Background(), releaseScript, []string{key}, value).Int64()
	if err != nil {
		d.logger.Error("[error]release redis run lock failed", slog.String("key", key), slog.String("err", err.Error()))
		return
	}
	if reply != 1 {
		d.logger.Warn("[warn]redis run lock already released", slog.String("key", key))
	}
}
