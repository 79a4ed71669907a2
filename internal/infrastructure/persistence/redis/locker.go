package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"vidsum-ai-api/pkg/logger"
)

const (
	defaultLockTTL   = 30 * time.Second
	lockPollInterval = 50 * time.Millisecond
)

// unlockScript 仅当锁仍由自己持有时删除
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker 基于 SET NX PX 的分布式按键锁
type Locker struct {
	client *Client
	keys   Keys
	ttl    time.Duration
}

// NewLocker 创建分布式锁；ttl 为持锁上限，防止进程崩溃后死锁
func NewLocker(client *Client, keys Keys, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Locker{client: client, keys: keys, ttl: ttl}
}

// Lock 轮询获取锁，直到成功或 ctx 结束
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.keys.Lock(key)
	token := uuid.NewString()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		ok, err := l.client.rdb.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// 使用独立上下文释放，调用方上下文可能已取消
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(releaseCtx, l.client.rdb, []string{lockKey}, token).Err(); err != nil {
			logger.Warn(ctx, "failed to release redis lock", "key", lockKey, "error", err.Error())
		}
	}, nil
}
