package approval

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/category"
	"github.com/web3nomad/Rabby/internal/service/gas"
	"github.com/web3nomad/Rabby/internal/service/nonce"
	"github.com/web3nomad/Rabby/internal/service/pending"
	"github.com/web3nomad/Rabby/internal/service/reporter"
	"github.com/web3nomad/Rabby/pkg/monitor"
	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

const (
	pipelineInit    = "init"
	pipelineExplain = "explain"
	pipelineGas     = "gas"
)

// chainReads is the fan-out result of one explain run.
type chainReads struct {
	recNonce      uint64
	safeNonce     *uint64
	pending       []model.PendingTransaction
	balance       *big.Int
	blockGasLimit uint64
}

// init loads the gas market, picks the initial tier and runs the first explain.
func (s *Session) init(ctx context.Context) {
	defer monitor.Timer(pipelineInit)()
	token := s.token.Add(1)

	s.mu.Lock()
	tx, flags := s.tx, s.flags
	s.mu.Unlock()

	var last model.GasSelection
	var hasLast bool
	if s.svc.deps.Selections != nil {
		sel, ok, err := s.svc.deps.Selections.Get(ctx, tx.ChainID)
		if err != nil {
			s.svc.bestEffort(ctx, "gas_selection", tx.ChainID, err)
		}
		last, hasLast = sel, ok && err == nil
	}

	customPrice := seedCustomPrice(tx, flags, last, hasLast)
	levels := s.loadGasMarket(ctx, tx.ChainID, customPrice)
	target := initialLevel(levels, flags, customPrice, last, hasLast)

	s.mu.Lock()
	if !s.current(token, pipelineInit) {
		s.mu.Unlock()
		return
	}
	s.levels = levels
	s.selected = target
	if target.Price.IsPositive() {
		s.applyPrice(target)
	}
	s.mu.Unlock()

	s.explain(ctx, token, false)
}

// seedCustomPrice is the price the custom tier starts with, zero when none.
func seedCustomPrice(tx model.TxIntent, flags model.RequestFlags, last model.GasSelection, hasLast bool) decimal.Decimal {
	if hasLast && last.LastTimeSelect == model.LastSelectGasPrice {
		if d, err := decimal.NewFromString(last.GasPrice); err == nil && d.IsPositive() {
			return d
		}
	}
	if flags.IsSpeedUp || flags.IsCancel || ((flags.IsSend || flags.IsSwap) && tx.GasPrice != "") {
		if p, ok := hexnum.Big(tx.Price()); ok {
			return decimal.NewFromBigInt(p, 0)
		}
	}
	return decimal.Zero
}

func initialLevel(levels []model.GasLevel, flags model.RequestFlags, customPrice decimal.Decimal, last model.GasSelection, hasLast bool) model.GasLevel {
	useCustom := ((flags.IsSend || flags.IsSwap) && customPrice.IsPositive()) ||
		flags.IsSpeedUp || flags.IsCancel ||
		(hasLast && last.LastTimeSelect == model.LastSelectGasPrice)
	if useCustom {
		if l, ok := model.FindLevel(levels, model.GasLevelCustom); ok {
			return l
		}
	}
	if hasLast && last.LastTimeSelect == model.LastSelectGasLevel {
		if l, ok := model.FindLevel(levels, last.GasLevel); ok {
			return l
		}
	}
	if l, ok := model.FindLevel(levels, model.GasLevelNormal); ok {
		return l
	}
	if len(levels) > 0 {
		return levels[0]
	}
	return model.GasLevel{Level: model.GasLevelCustom, Price: customPrice}
}

// loadGasMarket falls back to a lone custom tier when the market is unreachable.
func (s *Session) loadGasMarket(ctx context.Context, chainID int64, customPrice decimal.Decimal) []model.GasLevel {
	fallback := []model.GasLevel{{Level: model.GasLevelCustom, Price: customPrice, BaseFee: decimal.Zero}}
	if s.svc.deps.Market == nil {
		return fallback
	}
	levels, err := s.svc.deps.Market.GasMarket(ctx, chainID, customPrice)
	if err != nil {
		s.svc.bestEffort(ctx, "gas_market", chainID, err)
		return fallback
	}
	if _, ok := model.FindLevel(levels, model.GasLevelCustom); !ok {
		levels = append(levels, fallback[0])
	}
	return levels
}

// Refresh re-runs the explain pipeline, typically after the tx changed on the dapp side.
func (s *Session) Refresh(ctx context.Context) {
	s.explain(ctx, s.token.Add(1), false)
}

// explain fetches chain state, simulates, recommends gas and re-evaluates the findings.
// Results are applied only if token is still current when the reads come back.
// The balance adjuster runs on the first explain, and again when readjust is set and the
// user has not typed a gas limit.
func (s *Session) explain(ctx context.Context, token uint64, readjust bool) {
	defer monitor.Timer(pipelineExplain)()
	ctx = reporter.WithSessionID(ctx, s.ID)

	s.mu.Lock()
	if s.fatal != nil || s.closed {
		s.mu.Unlock()
		return
	}
	tx := s.tx
	flags := s.flags
	nonceChanged := s.nonceChanged
	firstRun := s.gasLimit == 0
	manual := s.manualGasLimit
	prevGasLimit := s.gasLimit
	fixedRatio := s.fixedRatio
	s.mu.Unlock()

	reads, err := s.readChain(ctx, tx)
	if err != nil {
		s.mu.Lock()
		if s.current(token, pipelineExplain) {
			s.readErr = fatalError(err)
			s.ready = true
			s.findings = nil
		}
		s.mu.Unlock()
		s.logger().Warn("explain aborted", zap.Int64("chain_id", tx.ChainID), zap.Error(err))
		return
	}

	isGnosis := s.account.IsGnosis()
	updateNonce := nonce.ShouldUpdate(tx, flags, nonceChanged)
	switch {
	case isGnosis && reads.safeNonce != nil:
		tx = nonce.ApplySafeNonce(tx, *reads.safeNonce)
	case !isGnosis && updateNonce:
		tx.Nonce = hexnum.FromUint64(reads.recNonce)
	}
	candidate, _ := hexnum.Uint64(tx.Nonce)

	sim := s.preExec(ctx, tx, updateNonce, pending.Before(reads.pending, candidate))

	rec, err := gas.Recommend(ctx, sim.Gas.GasUsed, tx, s.svc.deps.History, s.svc.opts.Policy)
	if err != nil {
		s.svc.bestEffort(ctx, "history_gas", tx.ChainID, err)
	}
	ratio := s.svc.opts.Policy.Ratio(tx.ChainID, rec.NeedRatio)
	if fixedRatio {
		ratio = 1
	}

	gasLimit := prevGasLimit
	if firstRun {
		txGas, hasGas := hexnum.Uint64(tx.Gas)
		adjustRatio := ratio
		if s.origin != "" && strings.EqualFold(s.origin, s.svc.opts.InternalOrigin) && hasGas && txGas > 0 {
			gasLimit = txGas
			ratio = 1
			adjustRatio = 1
			fixedRatio = true
		} else {
			gasLimit = gas.Limit(rec.Gas, ratio)
		}
		if !isGnosis && !manual {
			gasLimit = s.adjust(tx, candidate, reads, rec.Gas, adjustRatio, gasLimit)
		}
	} else if readjust && !manual && !isGnosis {
		gasLimit = s.adjust(tx, candidate, reads, rec.Gas, ratio, gas.Limit(rec.Gas, ratio))
	}
	tx.Gas = hexnum.FromUint64(gasLimit)

	cost := s.explainCost(ctx, tx, sim, rec, gasLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(token, pipelineExplain) {
		return
	}
	s.tx = tx
	s.recNonce = reads.recNonce
	s.safeNonce = reads.safeNonce
	if isGnosis && reads.safeNonce != nil {
		s.recNonce = *reads.safeNonce
	}
	if !nonceChanged {
		s.realNonce = tx.Nonce
	}
	s.pending = reads.pending
	s.balance = reads.balance
	s.blockGasLimit = reads.blockGasLimit
	s.sim = sim
	s.detail = category.Classify(sim)
	s.rec = rec
	s.ratio = ratio
	s.fixedRatio = fixedRatio
	s.gasLimit = gasLimit
	s.cost = cost
	s.ready = true
	s.readErr = nil
	s.invalidate()
	s.evaluate()
	s.startSecurity()
}

// readChain fans out the state reads. Only the nonce of a non-multisig account is required.
func (s *Session) readChain(ctx context.Context, tx model.TxIntent) (chainReads, error) {
	var out chainReads
	deps := s.svc.deps
	addr := s.account.Address
	if addr == "" {
		addr = tx.From
	}
	isGnosis := s.account.IsGnosis()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if isGnosis {
			if deps.Nonce == nil {
				return nil
			}
			n, err := deps.Nonce.SafeNonce(gctx, tx.ChainID, addr)
			if err != nil {
				s.svc.bestEffort(gctx, "safe_nonce", tx.ChainID, err)
				return nil
			}
			out.safeNonce = &n
			out.recNonce = n
			return nil
		}
		if deps.Nonce == nil {
			return fmt.Errorf("nonce resolver not configured")
		}
		n, err := deps.Nonce.Recommend(gctx, tx.ChainID, addr)
		if err != nil {
			return err
		}
		out.recNonce = n
		return nil
	})
	if deps.Pending != nil {
		g.Go(func() error {
			list, err := deps.Pending.List(gctx, tx.ChainID, addr)
			if err != nil {
				s.svc.bestEffort(gctx, "pending", tx.ChainID, err)
				return nil
			}
			out.pending = list
			return nil
		})
	}
	if deps.Chain != nil {
		g.Go(func() error {
			b, err := deps.Chain.BalanceAt(gctx, tx.ChainID, addr)
			if err != nil {
				s.svc.bestEffort(gctx, "balance", tx.ChainID, err)
				return nil
			}
			out.balance = b
			return nil
		})
		g.Go(func() error {
			limit, err := deps.Chain.BlockGasLimit(gctx, tx.ChainID)
			if err != nil {
				s.svc.bestEffort(gctx, "block", tx.ChainID, err)
				return nil
			}
			out.blockGasLimit = limit
			return nil
		})
	}
	// 每个 goroutine 只写自己的字段, Wait 之后再读
	if err := g.Wait(); err != nil {
		return chainReads{}, err
	}
	return out, nil
}

func (s *Session) preExec(ctx context.Context, tx model.TxIntent, updateNonce bool, before []model.PendingTransaction) model.SimulationResult {
	if s.svc.deps.Simulator == nil {
		return model.SimulationResult{}
	}
	list := make([]model.TxIntent, 0, len(before))
	for _, p := range before {
		list = append(list, pendingIntent(p))
	}
	sim, err := s.svc.deps.Simulator.PreExec(ctx, model.PreExecRequest{
		Tx:            gas.ExplainTx(tx),
		Origin:        s.origin,
		Address:       tx.From,
		UpdateNonce:   updateNonce,
		PendingTxList: list,
	})
	if err != nil {
		s.svc.bestEffort(ctx, "pre_exec", tx.ChainID, err)
		return model.SimulationResult{}
	}
	return sim
}

// pendingIntent shapes a queued tx the way the pre-execution service expects it.
func pendingIntent(p model.PendingTransaction) model.TxIntent {
	gasHex := p.Gas
	if gasHex == "" {
		gasHex = p.GasLimit
	}
	if gasHex == "" {
		gasHex = "0x0"
	}
	value := p.Value
	if value == "" {
		value = "0x0"
	}
	data := p.Data
	if data == "" {
		data = "0x"
	}
	return model.TxIntent{
		ChainID:  p.ChainID,
		From:     p.From,
		To:       p.To,
		Data:     data,
		Value:    value,
		Nonce:    hexnum.FromUint64(p.Nonce),
		Gas:      gasHex,
		GasPrice: hexnum.FromBig(p.PriceWei()),
	}
}

// adjust caps gasLimit by the spendable balance. Without a balance only the block cap applies.
func (s *Session) adjust(tx model.TxIntent, candidate uint64, reads chainReads, recGas uint64, ratio float64, gasLimit uint64) uint64 {
	if reads.balance == nil {
		if reads.blockGasLimit > 0 && gasLimit > reads.blockGasLimit {
			return reads.blockGasLimit
		}
		return gasLimit
	}
	return gas.AffordableGasLimit(gas.AdjustInput{
		Balance:             reads.balance,
		Value:               hexnum.BigOrZero(tx.Value),
		GasPrice:            hexnum.BigOrZero(tx.Price()),
		Nonce:               candidate,
		Pending:             reads.pending,
		RecommendedGasLimit: recGas,
		Ratio:               ratio,
		BlockGasLimit:       reads.blockGasLimit,
	}, s.svc.opts.Policy.MinGasLimit)
}

func (s *Session) explainCost(ctx context.Context, tx model.TxIntent, sim model.SimulationResult, rec gas.Recommendation, gasLimit uint64) gas.Cost {
	used := sim.Gas.GasUsed
	if used == 0 {
		used = rec.Gas
	}
	cost, err := s.svc.costs.Explain(ctx, gas.CostInput{
		ChainID:          tx.ChainID,
		GasUsed:          used,
		GasLimit:         gasLimit,
		GasPrice:         hexnum.BigOrZero(tx.Price()),
		NativeTokenPrice: decimal.NewFromFloat(sim.NativeToken.Price),
		Tx:               tx,
	})
	if err != nil {
		s.svc.bestEffort(ctx, "l1_fee", tx.ChainID, err)
	}
	return cost
}
