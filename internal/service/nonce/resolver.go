// Package nonce recommends the next nonce for an address and decides when it may be applied.
package nonce

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/logger"
	"github.com/web3nomad/Rabby/pkg/monitor"
	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

var errNoSafeReader = errors.New("safe reader not configured")

// ChainReader returns the latest confirmed transaction count.
type ChainReader interface {
	NonceAt(ctx context.Context, chainID int64, address string) (uint64, error)
}

// LocalNonceSource returns the nonce after the highest locally queued one.
// ok is false when nothing is queued for the address.
type LocalNonceSource interface {
	NextNonce(ctx context.Context, chainID int64, address string) (next uint64, ok bool, err error)
}

// SafeReader reads the sequence counter of a Safe contract.
type SafeReader interface {
	SafeNonce(ctx context.Context, chainID int64, safe string) (uint64, error)
}

type Resolver struct {
	chain ChainReader
	local LocalNonceSource
	safe  SafeReader
	log   *zap.Logger
}

func NewResolver(chain ChainReader, local LocalNonceSource, safe SafeReader) *Resolver {
	return &Resolver{
		chain: chain,
		local: local,
		safe:  safe,
		log:   logger.Named("nonce"),
	}
}

// Recommend returns max(on-chain count, local next nonce). The chain read is required;
// a failing local store only loses the queued-tx bump.
func (r *Resolver) Recommend(ctx context.Context, chainID int64, address string) (uint64, error) {
	onChain, err := r.chain.NonceAt(ctx, chainID, address)
	if err != nil {
		return 0, errno.Wrap(errno.ErrNonceUnavailable, err)
	}
	if r.local == nil {
		return onChain, nil
	}

	next, ok, err := r.local.NextNonce(ctx, chainID, address)
	if err != nil {
		monitor.BestEffortFailure("local_nonce")
		r.log.Warn("local nonce lookup failed", zap.Int64("chain_id", chainID), zap.String("address", address), zap.Error(err))
		return onChain, nil
	}
	if ok && next > onChain {
		return next, nil
	}
	return onChain, nil
}

// SafeNonce is authoritative for multisig accounts.
func (r *Resolver) SafeNonce(ctx context.Context, chainID int64, safe string) (uint64, error) {
	if r.safe == nil {
		return 0, errno.Wrap(errno.ErrNonceUnavailable, errNoSafeReader)
	}
	n, err := r.safe.SafeNonce(ctx, chainID, safe)
	if err != nil {
		return 0, errno.Wrap(errno.ErrNonceUnavailable, err)
	}
	return n, nil
}

// ShouldUpdate reports whether a freshly recommended nonce may overwrite tx.Nonce.
func ShouldUpdate(tx model.TxIntent, flags model.RequestFlags, nonceChanged bool) bool {
	if flags.IsCancel || flags.IsSpeedUp || nonceChanged {
		return false
	}
	// a self-send carrying a nonce is a manual cancel
	if tx.IsSelfSend() && tx.Nonce != "" {
		return false
	}
	return true
}

// ApplySafeNonce raises tx.Nonce to the Safe nonce when it is lower or absent.
func ApplySafeNonce(tx model.TxIntent, safeNonce uint64) model.TxIntent {
	cur, ok := hexnum.Uint64(tx.Nonce)
	if !ok || cur < safeNonce {
		tx.Nonce = hexnum.FromUint64(safeNonce)
	}
	return tx
}

// Clamp keeps an edited nonce from going below floor.
func Clamp(nonce, floor uint64) uint64 {
	if nonce < floor {
		return floor
	}
	return nonce
}

