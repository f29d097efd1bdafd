package approval

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3nomad/Rabby/internal/event"
	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/category"
	"github.com/web3nomad/Rabby/internal/service/gas"
	"github.com/web3nomad/Rabby/internal/service/normalize"
	"github.com/web3nomad/Rabby/internal/service/security"
	"github.com/web3nomad/Rabby/pkg/errno"
)

const (
	fromAddr = "0x5853ed4f26a3fcea565b3fbc698bb19cdf6deb85"
	toAddr   = "0xdac17f958d2ee523a2206206994597c13d831ec7"
)

func gwei(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Shift(9)
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

type fakeChain struct {
	balance    *big.Int
	balanceErr error
	block      uint64
}

func (f *fakeChain) BalanceAt(context.Context, int64, string) (*big.Int, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) BlockGasLimit(context.Context, int64) (uint64, error) {
	return f.block, nil
}

type fakeNonce struct {
	next uint64
	err  error
	safe uint64
}

func (f *fakeNonce) Recommend(context.Context, int64, string) (uint64, error) {
	return f.next, f.err
}

func (f *fakeNonce) SafeNonce(context.Context, int64, string) (uint64, error) {
	return f.safe, nil
}

type fakePending struct {
	list []model.PendingTransaction
}

func (f *fakePending) List(context.Context, int64, string) ([]model.PendingTransaction, error) {
	return f.list, nil
}

type fakeSimulator struct {
	mu      sync.Mutex
	gasUsed uint64
	reqs    []model.PreExecRequest
}

func (f *fakeSimulator) PreExec(_ context.Context, req model.PreExecRequest) (model.SimulationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return model.SimulationResult{
		PreExec:     model.PreExecStatus{Success: true},
		Gas:         model.GasEstimate{GasUsed: f.gasUsed},
		NativeToken: model.NativeToken{Symbol: "ETH", Decimals: 18, Price: 2000},
		TypeSend:    &model.TypeSend{ToAddr: toAddr},
	}, nil
}

func (f *fakeSimulator) last() model.PreExecRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

type fakeMarket struct {
	err error
}

func (f *fakeMarket) GasMarket(_ context.Context, _ int64, customPrice decimal.Decimal) ([]model.GasLevel, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []model.GasLevel{
		{Level: model.GasLevelSlow, Price: gwei(1), BaseFee: gwei(1)},
		{Level: model.GasLevelNormal, Price: gwei(2), BaseFee: gwei(1)},
		{Level: model.GasLevelFast, Price: gwei(3), BaseFee: gwei(1)},
		{Level: model.GasLevelCustom, Price: customPrice, BaseFee: gwei(1)},
	}, nil
}

type fakeSecurity struct {
	mu     sync.Mutex
	result model.SecurityCheckResult
	err    error
	txs    int
	typed  int
	texts  int
}

func (f *fakeSecurity) respond() (model.SecurityCheckResult, error) {
	if f.err != nil {
		return model.SecurityCheckResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeSecurity) CheckTx(context.Context, model.TxIntent, string, string) (model.SecurityCheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs++
	return f.respond()
}

func (f *fakeSecurity) CheckTypedData(context.Context, string, string, json.RawMessage) (model.SecurityCheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed++
	return f.respond()
}

func (f *fakeSecurity) CheckText(context.Context, string, string, string) (model.SecurityCheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts++
	return f.respond()
}

func (f *fakeSecurity) calls() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txs, f.typed, f.texts
}

type fakeSelections struct {
	mu    sync.Mutex
	last  *model.GasSelection
	saved []model.GasSelection
}

func (f *fakeSelections) Get(context.Context, int64) (model.GasSelection, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return model.GasSelection{}, false, nil
	}
	return *f.last, true, nil
}

func (f *fakeSelections) Save(_ context.Context, sel model.GasSelection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, sel)
	return nil
}

type fakeReporter struct {
	mu         sync.Mutex
	submitted  []event.SubmittedEvent
	secFailed  int
	bestEffort []string
}

func (f *fakeReporter) SecurityCheckFailed(context.Context, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secFailed++
}

func (f *fakeReporter) BestEffortFailure(_ context.Context, stage string, _ int64, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bestEffort = append(f.bestEffort, stage)
}

func (f *fakeReporter) Submitted(_ context.Context, ev event.SubmittedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, ev)
}

type fixture struct {
	chain      *fakeChain
	nonce      *fakeNonce
	pending    *fakePending
	sim        *fakeSimulator
	market     *fakeMarket
	security   *fakeSecurity
	selections *fakeSelections
	reporter   *fakeReporter
	opts       Options
}

func newFixture() *fixture {
	return &fixture{
		chain:      &fakeChain{balance: ether(1), block: 30_000_000},
		nonce:      &fakeNonce{next: 5},
		pending:    &fakePending{},
		sim:        &fakeSimulator{gasUsed: 50000},
		market:     &fakeMarket{},
		security:   &fakeSecurity{result: model.SecurityCheckResult{Decision: model.DecisionPass, TraceID: "trace-1"}},
		selections: &fakeSelections{},
		reporter:   &fakeReporter{},
		opts: Options{
			Policy:            gas.DefaultPolicy(),
			InternalOrigin:    "https://rabby.io",
			SecurityTimeout:   time.Second,
			CustomGasDebounce: 20 * time.Millisecond,
			EIP1559Chains:     map[int64]bool{},
		},
	}
}

func (f *fixture) service() *Service {
	return NewService(Deps{
		Chain:      f.chain,
		Nonce:      f.nonce,
		Pending:    f.pending,
		Simulator:  f.sim,
		Market:     f.market,
		Security:   f.security,
		Selections: f.selections,
		Reporter:   f.reporter,
	}, f.opts)
}

func baseTx() normalize.RawTx {
	return normalize.RawTx{
		"chainId": 1,
		"from":    fromAddr,
		"to":      toAddr,
		"value":   "0x0",
		"data":    "0x",
	}
}

func privateKey() model.Account {
	return model.Account{Address: fromAddr, Type: model.AccountPrivateKey}
}

func openReady(t *testing.T, f *fixture, req Request) *Session {
	t.Helper()
	s := f.service().Open(context.Background(), req)
	t.Cleanup(s.Close)
	require.NoError(t, s.WaitSecurity(context.Background()))
	return s
}

func TestOpenAndAllow(t *testing.T) {
	f := newFixture()
	s := openReady(t, f, Request{Tx: baseTx(), Origin: "https://app.uniswap.org", Account: privateKey()})

	snap := s.Snapshot()
	require.True(t, snap.Ready)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "0x5", snap.Nonce)
	assert.Equal(t, uint64(5), snap.RecommendedNonce)
	assert.Equal(t, uint64(75000), snap.GasLimit)
	assert.Equal(t, model.GasLimitRecommendation{RecommendedGasLimit: 50000, Ratio: 1.5}, snap.Recommendation)
	assert.Equal(t, model.GasLevelNormal, snap.SelectedGas.Level)
	assert.Equal(t, "0x77359400", snap.Tx.GasPrice)
	assert.Equal(t, category.Send, snap.Category)
	assert.Empty(t, snap.Findings)
	assert.True(t, snap.Cost.GasCostAmount.Equal(decimal.RequireFromString("0.0001")))
	assert.True(t, snap.Cost.MaxGasCostAmount.Equal(decimal.RequireFromString("0.00015")))
	assert.True(t, snap.Cost.GasCostUSD.Equal(decimal.RequireFromString("0.2")))
	assert.Equal(t, model.DecisionPass, snap.Security.Decision)
	assert.True(t, snap.Submittable, snap.BlockedBy)

	req := f.sim.last()
	assert.Equal(t, "0x5", req.Tx.Nonce)
	assert.True(t, req.UpdateNonce)

	sub, err := s.Allow(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "0x5", sub.Nonce)
	assert.Equal(t, "0x124f8", sub.Gas)
	assert.Equal(t, "0x77359400", sub.GasPrice)
	assert.Equal(t, "trace-1", sub.TraceID)
	assert.Equal(t, fromAddr, sub.Address)

	require.Len(t, f.selections.saved, 1)
	assert.Equal(t, model.GasSelection{ChainID: 1, LastTimeSelect: model.LastSelectGasLevel, GasLevel: model.GasLevelNormal}, f.selections.saved[0])
	require.Len(t, f.reporter.submitted, 1)
	assert.Equal(t, "send", f.reporter.submitted[0].Category)
	assert.Equal(t, s.ID, f.reporter.submitted[0].SessionID)

	_, err = s.Allow(context.Background(), false)
	assert.ErrorIs(t, err, ErrSubmitted)
}

func TestPendingTransactionsShapedForPreExec(t *testing.T) {
	f := newFixture()
	f.pending.list = []model.PendingTransaction{
		{ChainID: 1, Nonce: 3, From: fromAddr, To: toAddr, Value: "0x0", MaxFeePerGas: "0x3b9aca00", GasUsed: 21000},
		{ChainID: 1, Nonce: 7, From: fromAddr, To: toAddr, Value: "0x0", GasPrice: "0x3b9aca00"},
	}
	openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

	req := f.sim.last()
	require.Len(t, req.PendingTxList, 1)
	assert.Equal(t, "0x3", req.PendingTxList[0].Nonce)
	assert.Equal(t, "0x3b9aca00", req.PendingTxList[0].GasPrice)
	assert.Equal(t, "0x0", req.PendingTxList[0].Gas)
	assert.Equal(t, "0x", req.PendingTxList[0].Data)
}

func TestGasLimitCappedByBalance(t *testing.T) {
	f := newFixture()
	f.chain.balance = big.NewInt(100_000_000_000_000) // 0.0001
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

	snap := s.Snapshot()
	assert.Equal(t, uint64(50000), snap.GasLimit)
	assert.Empty(t, snap.Findings)
	assert.True(t, snap.Submittable, snap.BlockedBy)
}

func TestBalanceUnavailableIsBestEffort(t *testing.T) {
	f := newFixture()
	f.chain.balanceErr = errors.New("rpc timeout")
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

	snap := s.Snapshot()
	assert.Equal(t, uint64(75000), snap.GasLimit)
	assert.Empty(t, snap.Findings)
	assert.Contains(t, f.reporter.bestEffort, "balance")
}

func TestFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		mut  func(f *fixture, raw normalize.RawTx)
		code int
	}{
		{
			name: "nonce unavailable",
			mut: func(f *fixture, _ normalize.RawTx) {
				f.nonce.err = errno.Wrap(errno.ErrNonceUnavailable, errors.New("rpc down"))
			},
			code: errno.ErrNonceUnavailable.Code,
		},
		{
			name: "missing from",
			mut:  func(_ *fixture, raw normalize.RawTx) { delete(raw, "from") },
			code: errno.ErrInvalidTransaction.Code,
		},
		{
			name: "negative gas",
			mut:  func(_ *fixture, raw normalize.RawTx) { raw["gas"] = -1 },
			code: errno.ErrInvalidTransaction.Code,
		},
		{
			name: "signed hex value",
			mut: func(f *fixture, raw normalize.RawTx) {
				f.chain.balance = big.NewInt(0)
				raw["value"] = "0x-de0b6b3a7640000"
			},
			code: errno.ErrInvalidTransaction.Code,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			raw := baseTx()
			tt.mut(f, raw)
			s := f.service().Open(context.Background(), Request{Tx: raw, Account: privateKey()})
			defer s.Close()

			snap := s.Snapshot()
			assert.True(t, snap.Ready)
			assert.Equal(t, tt.code, snap.ErrorCode)
			assert.False(t, snap.Submittable)
			assert.Error(t, s.CheckSubmittable())
			assert.Error(t, s.ChangeGas(context.Background(), GasChange{Level: model.GasLevelNormal, GasLimit: 21000}))
		})
	}
}

func TestRefreshRecoversFromNonceOutage(t *testing.T) {
	f := newFixture()
	f.nonce.err = errno.Wrap(errno.ErrNonceUnavailable, errors.New("rpc down"))
	s := f.service().Open(context.Background(), Request{Tx: baseTx(), Account: privateKey()})
	t.Cleanup(s.Close)

	snap := s.Snapshot()
	require.Equal(t, errno.ErrNonceUnavailable.Code, snap.ErrorCode)
	require.False(t, snap.Submittable)

	f.nonce.err = nil
	s.Refresh(context.Background())
	require.NoError(t, s.WaitSecurity(context.Background()))

	snap = s.Snapshot()
	assert.Zero(t, snap.ErrorCode)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "0x5", snap.Nonce)
	assert.Equal(t, uint64(75000), snap.GasLimit)
	assert.True(t, snap.Submittable, snap.BlockedBy)

	_, err := s.Allow(context.Background(), false)
	require.NoError(t, err)
}

func TestNormalizationErrorIsPermanent(t *testing.T) {
	f := newFixture()
	raw := baseTx()
	delete(raw, "from")
	s := f.service().Open(context.Background(), Request{Tx: raw, Account: privateKey()})
	t.Cleanup(s.Close)

	s.Refresh(context.Background())
	assert.Equal(t, errno.ErrInvalidTransaction.Code, s.Snapshot().ErrorCode)
}

func TestChangeGasNonceBelowRecommended(t *testing.T) {
	f := newFixture()
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

	require.NoError(t, s.ChangeGas(context.Background(), GasChange{Level: model.GasLevelNormal, GasLimit: 75000, Nonce: 3}))
	snap := s.Snapshot()
	assert.Equal(t, "0x3", snap.Nonce)
	assert.True(t, snap.NonceChanged)
	assert.False(t, snap.ManualGasLimit)
	require.Len(t, snap.Findings, 1)
	assert.Equal(t, model.Finding{Code: errno.CodeNonceTooLow, Message: "Nonce is too low, the minimum should be 5"}, snap.Findings[0])
	assert.ErrorIs(t, s.CheckSubmittable(), errno.ErrNotSubmittable)

	// an explicit nonce is not overwritten by later refreshes
	s.Refresh(context.Background())
	assert.Equal(t, "0x3", s.Snapshot().Nonce)
}

func TestChangeGasManualLimitNeedsAcknowledgement(t *testing.T) {
	f := newFixture()
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})
	ctx := context.Background()

	require.NoError(t, s.ChangeGas(ctx, GasChange{Level: model.GasLevelNormal, GasLimit: 30000, Nonce: 5}))
	require.NoError(t, s.WaitSecurity(ctx))
	snap := s.Snapshot()
	assert.True(t, snap.ManualGasLimit)
	assert.Equal(t, uint64(30000), snap.GasLimit)
	require.Len(t, snap.Findings, 1)
	assert.Equal(t, errno.CodeGasLimitLow, snap.Findings[0].Code)
	assert.Equal(t, model.SeverityWarn, snap.Findings[0].Severity)

	_, err := s.Allow(ctx, false)
	assert.ErrorIs(t, err, ErrNotAcknowledged)

	s.Acknowledge(true)
	sub, err := s.Allow(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "0x7530", sub.Gas)
}

func TestAcknowledgementRevokedOnChange(t *testing.T) {
	f := newFixture()
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})
	ctx := context.Background()

	require.NoError(t, s.ChangeGas(ctx, GasChange{Level: model.GasLevelNormal, GasLimit: 30000, Nonce: 5}))
	s.Acknowledge(true)
	require.NoError(t, s.ChangeGas(ctx, GasChange{Level: model.GasLevelFast, GasLimit: 30000, Nonce: 5}))
	assert.False(t, s.Snapshot().Acknowledged)
}

func TestChangeGasCustomTier(t *testing.T) {
	f := newFixture()
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})
	ctx := context.Background()

	err := s.ChangeGas(ctx, GasChange{Level: "turbo", GasLimit: 75000, Nonce: 5})
	assert.ErrorIs(t, err, ErrUnknownGasLevel)
	err = s.ChangeGas(ctx, GasChange{Level: model.GasLevelCustom, GasLimit: 75000, Nonce: 5})
	assert.ErrorIs(t, err, ErrCustomPriceEmpty)

	require.NoError(t, s.ChangeGas(ctx, GasChange{Level: model.GasLevelCustom, Price: gwei(5), GasLimit: 75000, Nonce: 5}))
	require.NoError(t, s.WaitSecurity(ctx))
	snap := s.Snapshot()
	assert.Equal(t, model.GasLevelCustom, snap.SelectedGas.Level)
	assert.Equal(t, "0x12a05f200", snap.Tx.GasPrice)
	custom, ok := model.FindLevel(snap.GasLevels, model.GasLevelCustom)
	require.True(t, ok)
	assert.True(t, custom.Price.Equal(gwei(5)))
	assert.True(t, custom.BaseFee.Equal(gwei(1)))

	_, err = s.Allow(ctx, false)
	require.NoError(t, err)
	require.Len(t, f.selections.saved, 1)
	assert.Equal(t, model.LastSelectGasPrice, f.selections.saved[0].LastTimeSelect)
	assert.Equal(t, "5000000000", f.selections.saved[0].GasPrice)
}

func TestSetCustomGasDebounced(t *testing.T) {
	f := newFixture()
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

	assert.ErrorIs(t, s.SetCustomGas(decimal.Zero), ErrCustomPriceEmpty)
	require.NoError(t, s.SetCustomGas(decimal.NewFromInt(7)))
	require.NoError(t, s.SetCustomGas(decimal.NewFromInt(6)))

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.SelectedGas.Level == model.GasLevelCustom && snap.SelectedGas.Price.Equal(gwei(6))
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(75000), s.Snapshot().GasLimit)
}

func TestValidateGasEdit(t *testing.T) {
	f := newFixture()
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

	assert.ErrorIs(t, s.ValidateGasEdit("", 5), ErrGasLimitEmpty)
	assert.ErrorIs(t, s.ValidateGasEdit("20999", 5), ErrGasLimitTooLow)
	assert.ErrorIs(t, s.ValidateGasEdit("abc", 5), ErrGasLimitTooLow)
	assert.ErrorIs(t, s.ValidateGasEdit("21000", 4), ErrCustomNonceLow)
	assert.NoError(t, s.ValidateGasEdit("21000", 5))
	assert.Equal(t, uint64(75000), s.SuggestedGasLimit())
}

func TestSpeedUpKeepsNonceAndCustomPrice(t *testing.T) {
	f := newFixture()
	raw := baseTx()
	raw["isSpeedUp"] = true
	raw["nonce"] = "0x3"
	raw["gasPrice"] = "0xb2d05e00" // 3 gwei
	s := openReady(t, f, Request{Tx: raw, Account: privateKey()})
	ctx := context.Background()

	snap := s.Snapshot()
	assert.Equal(t, "0x3", snap.Nonce)
	assert.Equal(t, model.GasLevelCustom, snap.SelectedGas.Level)
	assert.True(t, snap.SelectedGas.Price.Equal(gwei(3)))
	assert.Empty(t, snap.Findings)
	assert.False(t, s.NonceEditable())
	assert.NoError(t, s.ValidateGasEdit("21000", 1))
	assert.False(t, f.sim.last().UpdateNonce)

	require.NoError(t, s.ChangeGas(ctx, GasChange{Level: model.GasLevelFast, GasLimit: 75000, Nonce: 1}))
	require.NoError(t, s.WaitSecurity(ctx))
	assert.Equal(t, "0x3", s.Snapshot().Nonce)

	_, err := s.Allow(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, f.selections.saved)
}

func TestInitialTierFromLastSelection(t *testing.T) {
	tests := []struct {
		name  string
		last  model.GasSelection
		level string
		price decimal.Decimal
	}{
		{"gas level", model.GasSelection{ChainID: 1, LastTimeSelect: model.LastSelectGasLevel, GasLevel: model.GasLevelFast}, model.GasLevelFast, gwei(3)},
		{"gas price", model.GasSelection{ChainID: 1, LastTimeSelect: model.LastSelectGasPrice, GasPrice: "4000000000"}, model.GasLevelCustom, gwei(4)},
		{"unknown level", model.GasSelection{ChainID: 1, LastTimeSelect: model.LastSelectGasLevel, GasLevel: "instant"}, model.GasLevelNormal, gwei(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			last := tt.last
			f.selections.last = &last
			s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

			snap := s.Snapshot()
			assert.Equal(t, tt.level, snap.SelectedGas.Level)
			assert.True(t, snap.SelectedGas.Price.Equal(tt.price))
		})
	}
}

func TestGasMarketUnavailable(t *testing.T) {
	f := newFixture()
	f.market.err = errors.New("503")
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

	snap := s.Snapshot()
	require.Len(t, snap.GasLevels, 1)
	assert.Equal(t, model.GasLevelCustom, snap.GasLevels[0].Level)
	assert.Contains(t, f.reporter.bestEffort, "gas_market")

	_, err := s.Allow(context.Background(), false)
	assert.ErrorIs(t, err, errno.ErrGasPriceRange)
}

func TestInternalOriginUsesRatioOne(t *testing.T) {
	f := newFixture()
	raw := baseTx()
	raw["gas"] = "0x7530"
	s := openReady(t, f, Request{Tx: raw, Origin: "https://rabby.io", Account: privateKey()})

	snap := s.Snapshot()
	assert.Equal(t, 1.0, snap.Recommendation.Ratio)
	assert.Equal(t, uint64(50000), snap.GasLimit)
}

func TestEIP1559Submission(t *testing.T) {
	f := newFixture()
	f.opts.EIP1559Chains = map[int64]bool{1: true}
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

	snap := s.Snapshot()
	assert.Empty(t, snap.Tx.GasPrice)
	assert.Equal(t, "0x77359400", snap.Tx.MaxFeePerGas)
	assert.True(t, snap.MaxPriorityFee.Equal(gwei(1)))

	sub, err := s.Allow(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "0x77359400", sub.MaxFeePerGas)
	assert.Equal(t, "0x3b9aca00", sub.MaxPriorityFeePerGas)
}

func TestSecurityDecisions(t *testing.T) {
	ctx := context.Background()

	t.Run("danger needs double check", func(t *testing.T) {
		f := newFixture()
		f.security.result = model.SecurityCheckResult{Decision: model.DecisionDanger}
		s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

		_, err := s.Allow(ctx, false)
		assert.ErrorIs(t, err, errno.ErrSecurityCheckNotMet)
		_, err = s.Allow(ctx, true)
		assert.NoError(t, err)
	})

	t.Run("force process turned off", func(t *testing.T) {
		f := newFixture()
		f.security.result = model.SecurityCheckResult{Decision: model.DecisionWarn}
		s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

		require.NoError(t, s.SetForceProcess(false))
		_, err := s.Allow(ctx, true)
		assert.ErrorIs(t, err, errno.ErrSecurityCheckNotMet)
	})

	t.Run("forbidden", func(t *testing.T) {
		f := newFixture()
		f.security.result = model.SecurityCheckResult{Decision: model.DecisionForbidden}
		s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

		assert.Error(t, s.SetForceProcess(true))
		assert.False(t, s.Snapshot().Submittable)
		_, err := s.Allow(ctx, true)
		assert.ErrorIs(t, err, errno.ErrSecurityCheckNotMet)
	})

	t.Run("engine failure degrades to pass", func(t *testing.T) {
		f := newFixture()
		f.security.err = errors.New("502")
		s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

		snap := s.Snapshot()
		assert.Equal(t, model.DecisionPass, snap.Security.Decision)
		require.NotNil(t, snap.Security.Result)
		assert.Equal(t, security.UnavailableAlert, snap.Security.Result.Alert)
		assert.Equal(t, 1, f.reporter.secFailed)
		_, err := s.Allow(ctx, false)
		assert.NoError(t, err)
	})
}

func TestCannotProcess(t *testing.T) {
	tests := []struct {
		name    string
		account model.Account
		network int64
	}{
		{"watch address", model.Account{Address: fromAddr, Type: model.AccountWatch}, 0},
		{"safe on another chain", model.Account{Address: fromAddr, Type: model.AccountGnosis}, 137},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			s := openReady(t, f, Request{Tx: baseTx(), Account: tt.account, SafeNetworkID: tt.network})

			snap := s.Snapshot()
			assert.False(t, snap.CanProcess)
			assert.NotEmpty(t, snap.CannotProcessReason)
			assert.ErrorIs(t, s.CheckSubmittable(), errno.ErrCannotProcess)
		})
	}
}

func TestSafeNonceIsAuthoritative(t *testing.T) {
	f := newFixture()
	f.nonce.safe = 9
	f.chain.balance = big.NewInt(1) // multisig skips the balance rules
	raw := baseTx()
	raw["nonce"] = "0x2"
	s := openReady(t, f, Request{Tx: raw, Account: model.Account{Address: fromAddr, Type: model.AccountGnosis}, SafeNetworkID: 1})
	ctx := context.Background()

	snap := s.Snapshot()
	assert.Equal(t, "0x9", snap.Nonce)
	assert.Equal(t, uint64(9), snap.RecommendedNonce)
	assert.Equal(t, uint64(75000), snap.GasLimit)
	assert.Empty(t, snap.Findings)
	assert.True(t, snap.Submittable, snap.BlockedBy)

	require.NoError(t, s.ChangeGas(ctx, GasChange{Level: model.GasLevelNormal, GasLimit: 75000, Nonce: 4}))
	assert.Equal(t, "0x9", s.Snapshot().Nonce)
}

func TestStaleResultDiscarded(t *testing.T) {
	f := newFixture()
	s := openReady(t, f, Request{Tx: baseTx(), Account: privateKey()})

	stale := s.token.Load()
	s.token.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.False(t, s.current(stale, pipelineExplain))
	assert.True(t, s.current(s.token.Load(), pipelineExplain))
}

func TestSignSessions(t *testing.T) {
	ctx := context.Background()
	account := privateKey()

	t.Run("v1 waits for an on-demand check", func(t *testing.T) {
		f := newFixture()
		f.security.result = model.SecurityCheckResult{Decision: model.DecisionDanger}
		params := []json.RawMessage{
			json.RawMessage(`[{"type":"string","name":"Message","value":"Hi, Alice!"}]`),
			json.RawMessage(`"` + fromAddr + `"`),
		}
		s, err := f.service().OpenSign(ctx, SignRequest{Method: "eth_signTypedData", Params: params, Account: account})
		require.NoError(t, err)

		assert.Equal(t, model.DecisionPending, s.Snapshot().Security.Decision)
		assert.NoError(t, s.Allow(false))

		st := s.CheckNow(ctx)
		assert.Equal(t, model.DecisionDanger, st.Decision)
		assert.ErrorIs(t, s.Allow(false), errno.ErrSecurityCheckNotMet)
		assert.NoError(t, s.Allow(true))
		_, typed, texts := f.security.calls()
		assert.Equal(t, 0, typed)
		assert.Equal(t, 1, texts)
	})

	t.Run("v4 is checked on open", func(t *testing.T) {
		f := newFixture()
		data := `{"domain":{"name":"Permit","chainId":"0x89"},"primaryType":"Permit","message":{}}`
		quoted, _ := json.Marshal(data)
		s, err := f.service().OpenSign(ctx, SignRequest{
			Method:  "eth_signTypedData_v4",
			Params:  []json.RawMessage{json.RawMessage(`"` + fromAddr + `"`), quoted},
			Account: account,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(137), s.Snapshot().ChainID)

		st := s.CheckNow(ctx)
		assert.Equal(t, model.DecisionPass, st.Decision)
		assert.NoError(t, s.Allow(false))
		_, typed, _ := f.security.calls()
		assert.Equal(t, 1, typed)
	})

	t.Run("object params and numeric chain id", func(t *testing.T) {
		f := newFixture()
		s, err := f.service().OpenSign(ctx, SignRequest{
			Method:  "eth_signTypedData_v3",
			Params:  []json.RawMessage{json.RawMessage(`"` + fromAddr + `"`), json.RawMessage(`{"domain":{"chainId":56}}`)},
			Account: account,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(56), s.Snapshot().ChainID)
	})

	t.Run("malformed typed data", func(t *testing.T) {
		f := newFixture()
		_, err := f.service().OpenSign(ctx, SignRequest{
			Method:  "eth_signTypedData_v4",
			Params:  []json.RawMessage{json.RawMessage(`"` + fromAddr + `"`), json.RawMessage(`"not json"`)},
			Account: account,
		})
		assert.ErrorIs(t, err, errno.ErrInvalidParam)
	})

	t.Run("safe cannot sign", func(t *testing.T) {
		f := newFixture()
		s, err := f.service().OpenSign(ctx, SignRequest{
			Method:  "eth_signTypedData",
			Params:  []json.RawMessage{json.RawMessage(`[]`)},
			Account: model.Account{Address: fromAddr, Type: model.AccountGnosis},
		})
		require.NoError(t, err)
		assert.False(t, s.Snapshot().CanProcess)
		assert.ErrorIs(t, s.Allow(true), errno.ErrCannotProcess)
	})
}

func TestRegistry(t *testing.T) {
	f := newFixture()
	reg := NewRegistry(time.Minute)
	s := f.service().Open(context.Background(), Request{Tx: baseTx(), Account: privateKey()})
	reg.Put(s)

	got, err := reg.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	_, err = reg.GetSign(s.ID)
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)

	reg.Remove(s.ID)
	_, err = reg.Get(s.ID)
	assert.ErrorIs(t, err, errno.ErrSessionNotFound)
	assert.ErrorIs(t, s.ChangeGas(context.Background(), GasChange{Level: model.GasLevelNormal}), ErrClosed)
}
