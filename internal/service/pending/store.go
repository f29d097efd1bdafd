// Package pending keeps the local queue of broadcast-but-unconfirmed transactions per address.
package pending

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/web3nomad/Rabby/internal/model"
)

// Account identifies one queue.
type Account struct {
	ChainID int64
	Address string
}

func (a Account) key() string {
	return fmt.Sprintf("%d:%s", a.ChainID, strings.ToLower(a.Address))
}

// Store is the pending-transaction queue.
type Store interface {
	// List returns the queue ordered by nonce.
	List(ctx context.Context, chainID int64, address string) ([]model.PendingTransaction, error)
	Add(ctx context.Context, tx model.PendingTransaction) error
	// RemoveBelow drops entries with nonce < nonce and returns how many were removed.
	RemoveBelow(ctx context.Context, chainID int64, address string, nonce uint64) (int, error)
	// Accounts lists queues that currently hold entries.
	Accounts(ctx context.Context) ([]Account, error)
	NextNonce(ctx context.Context, chainID int64, address string) (uint64, bool, error)
}

// Before filters the queue to entries the candidate nonce follows.
func Before(list []model.PendingTransaction, nonce uint64) []model.PendingTransaction {
	var out []model.PendingTransaction
	for _, p := range list {
		if p.Nonce < nonce {
			out = append(out, p)
		}
	}
	return out
}

func nextNonce(list []model.PendingTransaction) (uint64, bool) {
	if len(list) == 0 {
		return 0, false
	}
	var max uint64
	for _, p := range list {
		if p.Nonce > max {
			max = p.Nonce
		}
	}
	return max + 1, true
}

func sortByNonce(list []model.PendingTransaction) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Nonce != list[j].Nonce {
			return list[i].Nonce < list[j].Nonce
		}
		return list[i].CreatedAt < list[j].CreatedAt
	})
}

// MemoryStore is used by the CLI and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	queues map[string]map[string]model.PendingTransaction // account key -> hash -> tx
	index  map[string]Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queues: make(map[string]map[string]model.PendingTransaction),
		index:  make(map[string]Account),
	}
}

func (s *MemoryStore) List(_ context.Context, chainID int64, address string) ([]model.PendingTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q := s.queues[Account{chainID, address}.key()]
	out := make([]model.PendingTransaction, 0, len(q))
	for _, tx := range q {
		out = append(out, tx)
	}
	sortByNonce(out)
	return out, nil
}

func (s *MemoryStore) Add(_ context.Context, tx model.PendingTransaction) error {
	if tx.Hash == "" {
		return fmt.Errorf("pending tx without hash")
	}
	acc := Account{tx.ChainID, tx.From}
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[acc.key()]
	if !ok {
		q = make(map[string]model.PendingTransaction)
		s.queues[acc.key()] = q
		s.index[acc.key()] = acc
	}
	q[strings.ToLower(tx.Hash)] = tx
	return nil
}

func (s *MemoryStore) RemoveBelow(_ context.Context, chainID int64, address string, nonce uint64) (int, error) {
	key := Account{chainID, address}.key()
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queues[key]
	removed := 0
	for h, tx := range q {
		if tx.Nonce < nonce {
			delete(q, h)
			removed++
		}
	}
	if len(q) == 0 {
		delete(s.queues, key)
		delete(s.index, key)
	}
	return removed, nil
}

func (s *MemoryStore) Accounts(_ context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.index))
	for _, a := range s.index {
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryStore) NextNonce(ctx context.Context, chainID int64, address string) (uint64, bool, error) {
	list, err := s.List(ctx, chainID, address)
	if err != nil {
		return 0, false, err
	}
	n, ok := nextNonce(list)
	return n, ok, nil
}
