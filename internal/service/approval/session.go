package approval

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/category"
	"github.com/web3nomad/Rabby/internal/service/gas"
	"github.com/web3nomad/Rabby/internal/service/normalize"
	"github.com/web3nomad/Rabby/internal/service/reporter"
	"github.com/web3nomad/Rabby/internal/service/risk"
	"github.com/web3nomad/Rabby/internal/service/security"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/monitor"
	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

const (
	msgWatchOnly     = "Unable to sign because the current address is a Watch-only Address"
	msgSafeChainDiff = "The chain of this transaction does not match the chain of the multisig address"
)

var (
	ErrNotReady  = errors.New("review is still loading")
	ErrSubmitted = errors.New("review already submitted")
	ErrClosed    = errors.New("review closed")
)

// Request opens a transaction review.
type Request struct {
	Tx      normalize.RawTx
	Origin  string
	Account model.Account
	// SafeNetworkID is the chain a Safe account is deployed on; 0 when unknown.
	SafeNetworkID int64
}

// Session is one transaction review. All fields below mu are guarded by it; pipelines do
// their network reads unlocked and apply results only while their token is current.
type Session struct {
	ID  string
	svc *Service

	origin  string
	account model.Account
	flags   model.RequestFlags

	ctx    context.Context // lives until Close, outlasts single requests
	cancel context.CancelFunc
	token  atomic.Uint64

	mu             sync.Mutex
	tx             model.TxIntent
	realNonce      string
	recNonce       uint64
	safeNonce      *uint64
	nonceChanged   bool
	levels         []model.GasLevel
	selected       model.GasLevel
	maxPriorityFee decimal.Decimal
	support1559    bool
	rec            gas.Recommendation
	ratio          float64
	fixedRatio     bool // wallet-originated gas is used verbatim
	gasLimit       uint64
	manualGasLimit bool
	sim            model.SimulationResult
	detail         category.Detail
	cost           gas.Cost
	balance        *big.Int
	blockGasLimit  uint64
	pending        []model.PendingTransaction
	findings       []model.Finding
	acknowledged   bool
	ready          bool
	fatal          error // unnormalizable input, permanent
	readErr        error // required chain read failed, cleared by the next successful explain
	canProcess     bool
	cannotReason   string
	sec            *security.Orchestrator
	debounce       *time.Timer
	submitted      bool
	closed         bool
}

// Open normalizes the request and runs the first explain pipeline. Malformed input does
// not fail Open: the session is returned with a fatal error and is never submittable.
func (svc *Service) Open(ctx context.Context, req Request) *Session {
	id := uuid.NewString()
	ctx = reporter.WithSessionID(ctx, id)
	sctx, cancel := context.WithCancel(reporter.WithSessionID(context.Background(), id))
	s := &Session{
		ID:         id,
		svc:        svc,
		origin:     req.Origin,
		account:    req.Account,
		ctx:        sctx,
		cancel:     cancel,
		canProcess: true,
		ratio:      1,
	}

	tx, flags, err := svc.normalizeTx(ctx, req.Tx)
	if err != nil {
		s.fatal = err
		s.ready = true
		return s
	}
	s.tx = tx
	s.flags = flags
	s.support1559 = svc.opts.EIP1559Chains[tx.ChainID] && req.Account.Supports1559()
	s.checkCanProcess(req.SafeNetworkID)

	s.init(ctx)
	return s
}

func (svc *Service) normalizeTx(ctx context.Context, raw normalize.RawTx) (model.TxIntent, model.RequestFlags, error) {
	params, err := normalize.TxParams(raw)
	if err != nil {
		monitor.NormalizeError()
		svc.bestEffort(ctx, "normalize", 0, err)
	}
	return normalize.Intent(params)
}

func (s *Session) checkCanProcess(safeNetworkID int64) {
	if s.account.IsWatch() {
		s.canProcess = false
		s.cannotReason = msgWatchOnly
	}
	if s.account.IsGnosis() && safeNetworkID != 0 && safeNetworkID != s.tx.ChainID {
		s.canProcess = false
		s.cannotReason = msgSafeChainDiff
	}
}

// Close stops the debounce timer and in-flight security checks.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.closed = true
	s.cancel()
}

// current reports whether token still belongs to the latest pipeline. Caller holds mu.
func (s *Session) current(token uint64, pipeline string) bool {
	if s.token.Load() != token || s.closed {
		monitor.StaleDiscard(pipeline)
		return false
	}
	return true
}

// invalidate resets derived values that depend on user inputs. Caller holds mu.
func (s *Session) invalidate() {
	s.acknowledged = false
}

// nonceValue is the nonce the tx will be submitted with. Caller holds mu.
func (s *Session) nonceValue() string {
	if s.realNonce != "" {
		return s.realNonce
	}
	return s.tx.Nonce
}

// failure is the error keeping the session from being submittable. Caller holds mu.
func (s *Session) failure() error {
	if s.fatal != nil {
		return s.fatal
	}
	return s.readErr
}

// evaluate re-runs the risk gate over the current state. Caller holds mu.
func (s *Session) evaluate() {
	if !s.ready || s.failure() != nil {
		s.findings = nil
		return
	}
	nonce, _ := hexnum.Uint64(s.nonceValue())
	s.findings = s.svc.gate.Evaluate(risk.Input{
		GasLimit:            s.gasLimit,
		Nonce:               nonce,
		RecommendedGasLimit: s.rec.Gas,
		Ratio:               s.ratio,
		RecommendedNonce:    s.recNonce,
		MaxGasCost:          s.cost.MaxGasCostAmount,
		Value:               hexnum.BigOrZero(s.tx.Value),
		Balance:             s.balance,
		IsCancel:            s.flags.IsCancel,
		IsSpeedUp:           s.flags.IsSpeedUp,
		IsMultisig:          s.account.IsGnosis(),
	})
}

// applyPrice writes the selected tier price onto the tx. Caller holds mu.
func (s *Session) applyPrice(level model.GasLevel) {
	price := hexnum.FromBig(level.PriceWei())
	if s.support1559 {
		s.tx.GasPrice = price
		s.tx = gas.ConvertLegacyTo1559(s.tx)
	} else {
		s.tx.GasPrice = price
		s.tx.MaxFeePerGas = ""
		s.tx.MaxPriorityFeePerGas = ""
	}
	s.maxPriorityFee = s.svc.opts.Policy.MaxPriorityFee(s.tx.ChainID, s.levels, level)
}

// startSecurity replaces the security orchestrator and runs the check in the background.
// Caller holds mu.
func (s *Session) startSecurity() {
	orch := security.New(s.account.Address, false, s.svc.opts.SecurityTimeout, s.svc.failureReporter())
	s.sec = orch
	if s.svc.deps.Security == nil {
		go orch.Run(s.ctx, func(context.Context) (model.SecurityCheckResult, error) {
			return model.SecurityCheckResult{}, errors.New("security engine not configured")
		})
		return
	}
	tx := gas.ExplainTx(s.tx)
	engine := s.svc.deps.Security
	origin, addr := s.origin, s.account.Address
	go orch.Run(s.ctx, func(ctx context.Context) (model.SecurityCheckResult, error) {
		return engine.CheckTx(ctx, tx, origin, addr)
	})
}

// WaitSecurity blocks until the current security check resolves or ctx is done.
func (s *Session) WaitSecurity(ctx context.Context) error {
	s.mu.Lock()
	orch := s.sec
	s.mu.Unlock()
	if orch == nil {
		return nil
	}
	select {
	case <-orch.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) logger() *zap.Logger {
	return s.svc.log.With(zap.String("session_id", s.ID))
}

// fatalError wraps a pipeline failure the user has to resolve.
func fatalError(err error) error {
	var e *errno.Err
	if errors.As(err, &e) {
		return err
	}
	return errno.Wrap(errno.InternalServerError, err)
}
