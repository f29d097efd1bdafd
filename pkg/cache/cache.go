package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache 定义通用缓存接口
type Cache interface {
	// Set 写入缓存, ttl <= 0 表示使用实现自身的默认过期时间
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get 获取缓存，并将结果 Unmarshal 到 target 中
	Get(ctx context.Context, key string, target interface{}) error
	Delete(ctx context.Context, key string) error
}
