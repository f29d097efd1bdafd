package approval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/event"
	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/category"
	"github.com/web3nomad/Rabby/internal/service/gas"
	"github.com/web3nomad/Rabby/internal/service/reporter"
	"github.com/web3nomad/Rabby/internal/service/risk"
	"github.com/web3nomad/Rabby/internal/service/security"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/monitor"
	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

var (
	ErrBlockingFinding   = errors.New("a blocking finding is present")
	ErrNotAcknowledged   = errors.New("warnings have not been acknowledged")
	ErrSecurityPending   = errors.New("security check has not finished")
	ErrNeedsDoubleCheck  = errors.New("security decision is not pass, double check required")
	ErrSecurityForbidden = errors.New("security decision does not permit submission")
)

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID                  string                       `json:"id"`
	Ready               bool                         `json:"ready"`
	Error               string                       `json:"error,omitempty"`
	ErrorCode           int                          `json:"errorCode,omitempty"`
	CanProcess          bool                         `json:"canProcess"`
	CannotProcessReason string                       `json:"cannotProcessReason,omitempty"`
	Tx                  model.TxIntent               `json:"tx"`
	Flags               model.RequestFlags           `json:"flags"`
	Nonce               string                       `json:"nonce"`
	RecommendedNonce    uint64                       `json:"recommendedNonce"`
	SafeNonce           *uint64                      `json:"safeNonce,omitempty"`
	NonceChanged        bool                         `json:"nonceChanged"`
	GasLimit            uint64                       `json:"gasLimit"`
	ManualGasLimit      bool                         `json:"manualGasLimit"`
	Recommendation      model.GasLimitRecommendation `json:"recommendation"`
	GasLevels           []model.GasLevel             `json:"gasLevels"`
	SelectedGas         model.GasLevel               `json:"selectedGas"`
	MaxPriorityFee      decimal.Decimal              `json:"maxPriorityFee"`
	Cost                gas.Cost                     `json:"cost"`
	Category            category.Category            `json:"category"`
	Detail              category.Detail              `json:"detail"`
	PreExecSuccess      bool                         `json:"preExecSuccess"`
	PreExecError        string                       `json:"preExecError,omitempty"`
	Findings            []model.Finding              `json:"findings"`
	Acknowledged        bool                         `json:"acknowledged"`
	Security            security.State               `json:"security"`
	Submittable         bool                         `json:"submittable"`
	BlockedBy           string                       `json:"blockedBy,omitempty"`
	Submitted           bool                         `json:"submitted"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:                  s.ID,
		Ready:               s.ready,
		CanProcess:          s.canProcess,
		CannotProcessReason: s.cannotReason,
		Tx:                  s.tx,
		Flags:               s.flags,
		Nonce:               s.nonceValue(),
		RecommendedNonce:    s.recNonce,
		SafeNonce:           s.safeNonce,
		NonceChanged:        s.nonceChanged,
		GasLimit:            s.gasLimit,
		ManualGasLimit:      s.manualGasLimit,
		Recommendation:      model.GasLimitRecommendation{RecommendedGasLimit: s.rec.Gas, Ratio: s.ratio},
		GasLevels:           append([]model.GasLevel(nil), s.levels...),
		SelectedGas:         s.selected,
		MaxPriorityFee:      s.maxPriorityFee,
		Cost:                s.cost,
		Category:            s.detail.Category,
		Detail:              s.detail,
		PreExecSuccess:      s.sim.PreExec.Success,
		PreExecError:        s.sim.PreExec.ErrMsg,
		Findings:            append([]model.Finding(nil), s.findings...),
		Acknowledged:        s.acknowledged,
		Submitted:           s.submitted,
	}
	if err := s.failure(); err != nil {
		snap.ErrorCode, snap.Error = errno.Decode(err)
	}
	if s.sec != nil {
		snap.Security = s.sec.State()
	} else {
		snap.Security = security.State{Decision: model.DecisionLoading}
	}
	if err := s.checkSubmittable(); err != nil {
		snap.BlockedBy = err.Error()
	} else {
		snap.Submittable = true
	}
	return snap
}

// CheckSubmittable returns why the session cannot be submitted, or nil.
func (s *Session) CheckSubmittable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkSubmittable()
}

// checkSubmittable combines the risk findings and the security decision. Caller holds mu.
func (s *Session) checkSubmittable() error {
	if err := s.editable(); err != nil {
		return err
	}
	if !s.canProcess {
		return errno.Wrap(errno.ErrCannotProcess, errors.New(s.cannotReason))
	}
	if risk.Blocking(s.findings) {
		return errno.Wrap(errno.ErrNotSubmittable, ErrBlockingFinding)
	}
	if risk.NeedsAcknowledgement(s.findings) && !s.acknowledged {
		return errno.Wrap(errno.ErrNotSubmittable, ErrNotAcknowledged)
	}
	if s.sec == nil {
		return ErrSecurityPending
	}
	st := s.sec.State()
	if !st.Decision.Resolved() {
		return ErrSecurityPending
	}
	if !st.Permits() {
		return errno.Wrap(errno.ErrSecurityCheckNotMet, ErrSecurityForbidden)
	}
	return nil
}

// Acknowledge records the user's acceptance of warn/danger findings. Any later input
// change revokes it.
func (s *Session) Acknowledge(ack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acknowledged = ack
}

// SetForceProcess flips the override of a warn/danger security decision.
func (s *Session) SetForceProcess(force bool) error {
	s.mu.Lock()
	orch := s.sec
	s.mu.Unlock()
	if orch == nil {
		return ErrSecurityPending
	}
	if err := orch.SetForceProcess(force); err != nil {
		return errno.Wrap(errno.ErrSecurityCheckNotMet, err)
	}
	return nil
}

// Allow builds the transaction handed to the signer. Without doubleCheck the security
// decision must be pass; with it warn and danger pass through when force process is on.
func (s *Session) Allow(ctx context.Context, doubleCheck bool) (model.Submission, error) {
	ctx = reporter.WithSessionID(ctx, s.ID)
	s.mu.Lock()
	if err := s.checkSubmittable(); err != nil {
		s.mu.Unlock()
		return model.Submission{}, err
	}
	st := s.sec.State()
	if !doubleCheck && st.Decision != model.DecisionPass {
		s.mu.Unlock()
		return model.Submission{}, errno.Wrap(errno.ErrSecurityCheckNotMet, ErrNeedsDoubleCheck)
	}

	tx := s.tx
	if tx.MaxFeePerGas != "" {
		tx = gas.ApplyPriorityFee(tx, s.maxPriorityFee)
	}
	tx.Nonce = s.nonceValue()
	tx.Gas = hexnum.FromUint64(s.gasLimit)
	if err := gas.ValidateGasPriceRange(tx); err != nil {
		s.mu.Unlock()
		return model.Submission{}, errno.Wrap(errno.ErrGasPriceRange, err)
	}

	sub := model.Submission{
		TxIntent: tx,
		IsSend:   s.flags.IsSend,
		Address:  s.account.Address,
	}
	if st.Result != nil {
		sub.TraceID = st.Result.TraceID
	}
	s.submitted = true
	if s.debounce != nil {
		s.debounce.Stop()
	}
	selected := s.selected
	flags := s.flags
	cat := s.detail.Category
	findings := make([]int, 0, len(s.findings))
	for _, f := range s.findings {
		findings = append(findings, f.Code)
	}
	s.mu.Unlock()

	if !flags.IsSpeedUp && !flags.IsCancel && !flags.IsSwap {
		s.saveSelection(ctx, tx, selected)
	}

	monitor.Submission(strconv.FormatInt(tx.ChainID, 10), selected.Level)
	if s.svc.deps.Reporter != nil {
		s.svc.deps.Reporter.Submitted(ctx, event.SubmittedEvent{
			SessionID: s.ID,
			ChainID:   tx.ChainID,
			From:      tx.From,
			Nonce:     tx.Nonce,
			Gas:       tx.Gas,
			GasLevel:  selected.Level,
			TraceID:   sub.TraceID,
			Category:  cat.String(),
			Findings:  findings,
			At:        time.Now(),
		})
	}
	s.logger().Info("review submitted",
		zap.Int64("chain_id", tx.ChainID),
		zap.String("nonce", tx.Nonce),
		zap.String("gas", tx.Gas),
		zap.String("level", selected.Level))
	return sub, nil
}

// saveSelection persists the confirmed tier. A custom tier stores the price it was signed with.
func (s *Session) saveSelection(ctx context.Context, tx model.TxIntent, selected model.GasLevel) {
	if s.svc.deps.Selections == nil {
		return
	}
	sel := model.GasSelection{ChainID: tx.ChainID}
	if selected.Level == model.GasLevelCustom {
		price := hexnum.BigOrZero(tx.Price())
		sel.LastTimeSelect = model.LastSelectGasPrice
		sel.GasPrice = price.String()
	} else {
		sel.LastTimeSelect = model.LastSelectGasLevel
		sel.GasLevel = selected.Level
	}
	if err := s.svc.deps.Selections.Save(ctx, sel); err != nil {
		s.svc.bestEffort(ctx, "save_gas_selection", tx.ChainID, fmt.Errorf("save gas selection: %w", err))
	}
}
