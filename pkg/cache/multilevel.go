package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/pkg/logger"
)

// backfillTTL bounds how long an L2 hit lives in L1.
const backfillTTL = time.Minute

// MultiLevelCache 实现多级缓存 (L1: Memory, L2: Redis)
type MultiLevelCache struct {
	local  Cache
	remote Cache
}

func NewMultiLevelCache(local, remote Cache) *MultiLevelCache {
	return &MultiLevelCache{
		local:  local,
		remote: remote,
	}
}

func (m *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	// L1 只保留 L2 一半的 TTL
	if err := m.local.Set(ctx, key, value, ttl/2); err != nil {
		logger.Warn("local cache set failed", zap.String("key", key), zap.Error(err))
	}
	return m.remote.Set(ctx, key, value, ttl)
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}

	err := m.remote.Get(ctx, key, target)
	if err == nil {
		_ = m.local.Set(ctx, key, target, backfillTTL)
		return nil
	}
	if errors.Is(err, ErrMiss) {
		return ErrMiss
	}
	return err
}

func (m *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = m.local.Delete(ctx, key)
	return m.remote.Delete(ctx, key)
}
