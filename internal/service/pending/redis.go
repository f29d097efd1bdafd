package pending

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/logger"
)

// RedisStore keeps one hash per account (field = tx hash, value = JSON) plus a set
// indexing the non-empty accounts.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, log: logger.Named("pending")}
}

func (s *RedisStore) queueKey(a Account) string {
	return s.prefix + "pending:" + a.key()
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "pending:index"
}

func (s *RedisStore) List(ctx context.Context, chainID int64, address string) ([]model.PendingTransaction, error) {
	vals, err := s.client.HGetAll(ctx, s.queueKey(Account{chainID, address})).Result()
	if err != nil {
		return nil, fmt.Errorf("pending hgetall: %w", err)
	}
	out := make([]model.PendingTransaction, 0, len(vals))
	for h, v := range vals {
		var tx model.PendingTransaction
		if err := json.Unmarshal([]byte(v), &tx); err != nil {
			// 坏数据跳过, 不影响其余条目
			s.log.Warn("skip malformed pending entry", zap.String("hash", h), zap.Error(err))
			continue
		}
		out = append(out, tx)
	}
	sortByNonce(out)
	return out, nil
}

func (s *RedisStore) Add(ctx context.Context, tx model.PendingTransaction) error {
	if tx.Hash == "" {
		return fmt.Errorf("pending tx without hash")
	}
	b, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	acc := Account{tx.ChainID, tx.From}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.queueKey(acc), strings.ToLower(tx.Hash), b)
		p.SAdd(ctx, s.indexKey(), acc.key())
		return nil
	})
	if err != nil {
		return fmt.Errorf("pending add: %w", err)
	}
	return nil
}

func (s *RedisStore) RemoveBelow(ctx context.Context, chainID int64, address string, nonce uint64) (int, error) {
	acc := Account{chainID, address}
	list, err := s.List(ctx, chainID, address)
	if err != nil {
		return 0, err
	}
	var stale []string
	for _, tx := range list {
		if tx.Nonce < nonce {
			stale = append(stale, strings.ToLower(tx.Hash))
		}
	}
	if len(stale) > 0 {
		if err := s.client.HDel(ctx, s.queueKey(acc), stale...).Err(); err != nil {
			return 0, fmt.Errorf("pending hdel: %w", err)
		}
	}
	if len(stale) == len(list) {
		s.client.SRem(ctx, s.indexKey(), acc.key())
	}
	return len(stale), nil
}

func (s *RedisStore) Accounts(ctx context.Context) ([]Account, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("pending index: %w", err)
	}
	out := make([]Account, 0, len(members))
	for _, m := range members {
		chain, addr, ok := strings.Cut(m, ":")
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(chain, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Account{ChainID: id, Address: addr})
	}
	return out, nil
}

func (s *RedisStore) NextNonce(ctx context.Context, chainID int64, address string) (uint64, bool, error) {
	list, err := s.List(ctx, chainID, address)
	if err != nil {
		return 0, false, err
	}
	n, ok := nextNonce(list)
	return n, ok, nil
}
