// Package approval runs review sessions: it owns one transaction (or signature request)
// under review and every value derived from it, and decides when it may be submitted.
package approval

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/event"
	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/gas"
	"github.com/web3nomad/Rabby/internal/service/risk"
	"github.com/web3nomad/Rabby/internal/service/security"
	"github.com/web3nomad/Rabby/pkg/config"
	"github.com/web3nomad/Rabby/pkg/logger"
)

type ChainReader interface {
	BalanceAt(ctx context.Context, chainID int64, address string) (*big.Int, error)
	BlockGasLimit(ctx context.Context, chainID int64) (uint64, error)
}

type NonceResolver interface {
	Recommend(ctx context.Context, chainID int64, address string) (uint64, error)
	SafeNonce(ctx context.Context, chainID int64, safe string) (uint64, error)
}

type PendingLister interface {
	List(ctx context.Context, chainID int64, address string) ([]model.PendingTransaction, error)
}

type Simulator interface {
	PreExec(ctx context.Context, req model.PreExecRequest) (model.SimulationResult, error)
}

type GasMarket interface {
	GasMarket(ctx context.Context, chainID int64, customPrice decimal.Decimal) ([]model.GasLevel, error)
}

type SecurityEngine interface {
	CheckTx(ctx context.Context, tx model.TxIntent, origin, address string) (model.SecurityCheckResult, error)
	CheckTypedData(ctx context.Context, address, origin string, data json.RawMessage) (model.SecurityCheckResult, error)
	CheckText(ctx context.Context, address, origin, text string) (model.SecurityCheckResult, error)
}

type SelectionStore interface {
	Get(ctx context.Context, chainID int64) (model.GasSelection, bool, error)
	Save(ctx context.Context, sel model.GasSelection) error
}

type Reporter interface {
	security.FailureReporter
	BestEffortFailure(ctx context.Context, stage string, chainID int64, err error)
	Submitted(ctx context.Context, ev event.SubmittedEvent)
}

// Deps are the collaborators a session calls. History and L1 may be nil.
type Deps struct {
	Chain      ChainReader
	Nonce      NonceResolver
	Pending    PendingLister
	Simulator  Simulator
	History    gas.HistoryGasEstimator
	L1         gas.L1FeeEstimator
	Market     GasMarket
	Security   SecurityEngine
	Selections SelectionStore
	Reporter   Reporter
}

type Options struct {
	Policy            gas.Policy
	InternalOrigin    string
	SecurityTimeout   time.Duration
	CustomGasDebounce time.Duration
	EIP1559Chains     map[int64]bool
}

func OptionsFromConfig(cfg config.Config) Options {
	eip1559 := make(map[int64]bool)
	for _, c := range cfg.Chains {
		if c.EIP1559 {
			eip1559[c.ID] = true
		}
	}
	return Options{
		Policy:            gas.PolicyFromConfig(cfg.Gas, cfg.Chains),
		InternalOrigin:    cfg.App.InternalOrigin,
		SecurityTimeout:   cfg.Security.Timeout,
		CustomGasDebounce: cfg.Gas.CustomGasDebounce,
		EIP1559Chains:     eip1559,
	}
}

type Service struct {
	deps  Deps
	opts  Options
	gate  *risk.Gate
	costs *gas.CostExplainer
	log   *zap.Logger
}

func NewService(deps Deps, opts Options) *Service {
	if opts.CustomGasDebounce <= 0 {
		opts.CustomGasDebounce = 500 * time.Millisecond
	}
	return &Service{
		deps:  deps,
		opts:  opts,
		gate:  risk.NewGate(opts.Policy),
		costs: gas.NewCostExplainer(opts.Policy, deps.L1),
		log:   logger.Named("approval"),
	}
}

// bestEffort records a failed read whose fallback value is used instead.
func (svc *Service) bestEffort(ctx context.Context, stage string, chainID int64, err error) {
	if svc.deps.Reporter != nil {
		svc.deps.Reporter.BestEffortFailure(ctx, stage, chainID, err)
		return
	}
	svc.log.Warn("best effort read failed", zap.String("stage", stage), zap.Int64("chain_id", chainID), zap.Error(err))
}

func (svc *Service) failureReporter() security.FailureReporter {
	if svc.deps.Reporter == nil {
		return nil
	}
	return svc.deps.Reporter
}
