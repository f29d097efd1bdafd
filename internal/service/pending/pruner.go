package pending

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/pkg/logger"
	"github.com/web3nomad/Rabby/pkg/utils/lock"
)

const defaultPruneInterval = 30 * time.Second

// NonceReader returns the confirmed transaction count of an address.
type NonceReader interface {
	NonceAt(ctx context.Context, chainID int64, address string) (uint64, error)
}

// Pruner drops queue entries the chain has already confirmed.
// 一个 fetcher 按周期列出账户, 多个 worker 并行查询链上 nonce 并清理
type Pruner struct {
	store    Store
	chain    NonceReader
	interval time.Duration
	workers  int
	log      *zap.Logger
	lock     lock.Locker

	accounts chan Account
	wg       sync.WaitGroup
}

func NewPruner(store Store, chain NonceReader, interval time.Duration, workers int) *Pruner {
	if workers <= 0 {
		workers = 1
	}
	if interval <= 0 {
		interval = defaultPruneInterval
	}
	return &Pruner{
		store:    store,
		chain:    chain,
		interval: interval,
		workers:  workers,
		log:      logger.Named("pending.pruner"),
		// 带缓冲的 channel, worker 处理不过来时 fetcher 阻塞 (背压)
		accounts: make(chan Account, workers*2),
	}
}

// Start runs until ctx is done; Wait blocks until every goroutine has exited.
func (p *Pruner) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.wg.Add(1)
	go p.fetcher(ctx)
}

// WithLock makes instances sharing a store take turns: a round runs only on the
// instance holding the lock for that interval.
func (p *Pruner) WithLock(l lock.Locker) *Pruner {
	p.lock = l
	return p
}

func (p *Pruner) Wait() {
	p.wg.Wait()
}

func (p *Pruner) fetcher(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.accounts)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.acquire(ctx) {
				continue
			}
			accounts, err := p.store.Accounts(ctx)
			if err != nil {
				p.log.Warn("list pending accounts failed", zap.Error(err))
				continue
			}
			for _, a := range accounts {
				select {
				case p.accounts <- a:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// acquire 不释放锁, 让它在本轮周期结束时过期
func (p *Pruner) acquire(ctx context.Context) bool {
	if p.lock == nil {
		return true
	}
	_, ok, err := p.lock.Acquire(ctx, "pending_prune", p.interval)
	if err != nil {
		p.log.Warn("acquire prune lock failed", zap.Error(err))
	}
	return ok
}

func (p *Pruner) worker(ctx context.Context) {
	defer p.wg.Done()
	for a := range p.accounts {
		p.PruneAccount(ctx, a)
	}
}

// PruneAccount removes entries below the on-chain nonce of a.
func (p *Pruner) PruneAccount(ctx context.Context, a Account) int {
	confirmed, err := p.chain.NonceAt(ctx, a.ChainID, a.Address)
	if err != nil {
		p.log.Warn("nonce lookup failed", zap.Int64("chain_id", a.ChainID), zap.String("address", a.Address), zap.Error(err))
		return 0
	}
	n, err := p.store.RemoveBelow(ctx, a.ChainID, a.Address, confirmed)
	if err != nil {
		p.log.Warn("prune failed", zap.Int64("chain_id", a.ChainID), zap.String("address", a.Address), zap.Error(err))
		return 0
	}
	if n > 0 {
		p.log.Debug("pruned confirmed entries", zap.Int64("chain_id", a.ChainID), zap.String("address", a.Address), zap.Int("count", n))
	}
	return n
}
