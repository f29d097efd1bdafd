package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker 定义分布式锁接口
type Locker interface {
	// Acquire 尝试获取锁, 返回的 release 只删除自己持有的锁
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// 值匹配才删除, 避免锁过期后误删其他实例的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLock 基于 Redis SET NX 的实现
type RedisLock struct {
	client *redis.Client
	prefix string
}

func NewRedisLock(client *redis.Client, prefix string) *RedisLock {
	return &RedisLock{client: client, prefix: prefix}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	full := l.prefix + ":lock:" + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{full}, token).Err()
	}
	return release, true, nil
}
