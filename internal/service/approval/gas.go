package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/gas"
	"github.com/web3nomad/Rabby/pkg/monitor"
	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

// SuggestedRatio backs the editor's "recommended ×1.5" shortcut.
const SuggestedRatio = 1.5

var (
	ErrGasLimitEmpty    = errors.New("gas limit is required")
	ErrGasLimitTooLow   = errors.New("gas limit is too low")
	ErrCustomNonceLow   = errors.New("nonce is lower than the recommended nonce")
	ErrUnknownGasLevel  = errors.New("unknown gas level")
	ErrCustomPriceEmpty = errors.New("custom gas price must be positive")
)

// GasChange is a confirmed edit from the gas editor. Price is only read for the custom tier.
type GasChange struct {
	Level    string          `json:"level"`
	Price    decimal.Decimal `json:"price"` // wei
	GasLimit uint64          `json:"gasLimit"`
	Nonce    uint64          `json:"nonce"`
}

// NonceEditable is false for speed-up and cancel, which must keep their nonce.
func (s *Session) NonceEditable() bool {
	return !s.flags.IsSpeedUp && !s.flags.IsCancel
}

// ValidateGasEdit checks the editor inputs before they are confirmed. gasLimit is the raw
// text of the field so an empty value can be told apart from zero.
func (s *Session) ValidateGasEdit(gasLimit string, customNonce uint64) error {
	if gasLimit == "" {
		return ErrGasLimitEmpty
	}
	limit, err := decimal.NewFromString(gasLimit)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrGasLimitTooLow, gasLimit)
	}
	minGas := s.svc.opts.Policy.MinGasLimit
	if limit.LessThan(decimal.NewFromInt(int64(minGas))) {
		return fmt.Errorf("%w: minimum is %d", ErrGasLimitTooLow, minGas)
	}

	s.mu.Lock()
	recNonce := s.recNonce
	s.mu.Unlock()
	if s.NonceEditable() && customNonce < recNonce {
		return fmt.Errorf("%w: minimum is %d", ErrCustomNonceLow, recNonce)
	}
	return nil
}

// SuggestedGasLimit is the recommended gas times SuggestedRatio.
func (s *Session) SuggestedGasLimit() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gas.Limit(s.rec.Gas, SuggestedRatio)
}

// ChangeGas applies a tier, gas limit and nonce. A changed gas limit is kept as typed;
// otherwise the balance adjuster recomputes it. The explain pipeline runs again because
// the tx changed.
func (s *Session) ChangeGas(ctx context.Context, change GasChange) error {
	defer monitor.Timer(pipelineGas)()
	s.mu.Lock()
	if err := s.editable(); err != nil {
		s.mu.Unlock()
		return err
	}
	level, err := s.resolveLevel(change)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.selected = level
	s.applyPrice(level)

	before, _ := hexnum.Uint64(s.nonceValue())
	after := change.Nonce
	if !s.NonceEditable() {
		after = before
	}
	limitChanged := change.GasLimit != s.gasLimit
	if limitChanged {
		s.gasLimit = change.GasLimit
		s.manualGasLimit = true
	}
	s.tx.Gas = hexnum.FromUint64(s.gasLimit)
	s.tx.Nonce = hexnum.FromUint64(after)

	// Safe 账户不能低于合约 nonce
	realNonce := after
	if s.account.IsGnosis() && s.safeNonce != nil && *s.safeNonce > after {
		realNonce = *s.safeNonce
	}
	s.realNonce = hexnum.FromUint64(realNonce)
	if before != after {
		s.nonceChanged = true
	}
	s.invalidate()
	token := s.token.Add(1)
	s.mu.Unlock()

	s.explain(ctx, token, !limitChanged)
	return nil
}

// resolveLevel finds the tier named by change, updating the custom tier's price. Caller holds mu.
func (s *Session) resolveLevel(change GasChange) (model.GasLevel, error) {
	if change.Level != model.GasLevelCustom {
		l, ok := model.FindLevel(s.levels, change.Level)
		if !ok {
			return model.GasLevel{}, fmt.Errorf("%w: %q", ErrUnknownGasLevel, change.Level)
		}
		return l, nil
	}
	if !change.Price.IsPositive() {
		return model.GasLevel{}, ErrCustomPriceEmpty
	}
	custom := s.customLevel(change.Price)
	s.replaceCustom(custom)
	return custom, nil
}

// customLevel builds the custom tier for price. Caller holds mu.
func (s *Session) customLevel(price decimal.Decimal) model.GasLevel {
	baseFee := decimal.Zero
	if len(s.levels) > 0 {
		baseFee = s.levels[0].BaseFee
	}
	return model.GasLevel{
		Level:            model.GasLevelCustom,
		Price:            price,
		FrontTxCount:     0,
		EstimatedSeconds: 0,
		BaseFee:          baseFee,
	}
}

// replaceCustom swaps the custom entry of the tier list. Caller holds mu.
func (s *Session) replaceCustom(custom model.GasLevel) {
	for i, l := range s.levels {
		if l.Level == model.GasLevelCustom {
			s.levels[i] = custom
			return
		}
	}
	s.levels = append(s.levels, custom)
}

// SetCustomGas records a custom price typed in gwei. It is applied once the input has been
// quiet for the configured debounce window; later calls restart the window.
func (s *Session) SetCustomGas(gwei decimal.Decimal) error {
	if !gwei.IsPositive() {
		return ErrCustomPriceEmpty
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	if s.debounce != nil {
		s.debounce.Stop()
	}
	price := decimal.NewFromBigInt(gas.GweiToWei(gwei), 0)
	s.debounce = time.AfterFunc(s.svc.opts.CustomGasDebounce, func() {
		s.applyCustomGas(price)
	})
	return nil
}

func (s *Session) applyCustomGas(price decimal.Decimal) {
	s.mu.Lock()
	if s.closed || s.submitted {
		s.mu.Unlock()
		return
	}
	change := GasChange{
		Level:    model.GasLevelCustom,
		Price:    price,
		GasLimit: s.gasLimit,
	}
	n, _ := hexnum.Uint64(s.nonceValue())
	change.Nonce = n
	s.mu.Unlock()

	if err := s.ChangeGas(s.ctx, change); err != nil {
		s.logger().Warn("apply custom gas failed", zap.Error(err))
	}
}

// editable rejects edits once the session can no longer change. Caller holds mu.
func (s *Session) editable() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.submitted:
		return ErrSubmitted
	case s.failure() != nil:
		return s.failure()
	case !s.ready:
		return ErrNotReady
	}
	return nil
}
