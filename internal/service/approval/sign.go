package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/reporter"
	"github.com/web3nomad/Rabby/internal/service/security"
	"github.com/web3nomad/Rabby/pkg/errno"
)

const msgSafeCannotSign = "This is a Gnosis Safe address, and it cannot be used to sign text."

var typedDataV1 = regexp.MustCompile(`^eth_signTypedData(_v1)?$`)

// SignRequest is a typed-data signing request as received from the dapp.
type SignRequest struct {
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	Origin  string            `json:"origin"`
	Account model.Account     `json:"account"`
}

// SignSession reviews a typed-data signature. There is no gas or nonce; only the
// account check and the security decision gate it.
type SignSession struct {
	ID      string
	svc     *Service
	req     SignRequest
	v1      bool
	typed   json.RawMessage
	chainID int64
	reason  string
	sec     *security.Orchestrator
}

// SignSnapshot is a read-only view of a SignSession.
type SignSnapshot struct {
	ID                  string         `json:"id"`
	Method              string         `json:"method"`
	ChainID             int64          `json:"chainId,omitempty"`
	CanProcess          bool           `json:"canProcess"`
	CannotProcessReason string         `json:"cannotProcessReason,omitempty"`
	Security            security.State `json:"security"`
}

// OpenSign starts a typed-data review. v1 typed data waits in pending until CheckNow;
// later versions are checked immediately.
func (svc *Service) OpenSign(ctx context.Context, req SignRequest) (*SignSession, error) {
	s := &SignSession{
		ID:  uuid.NewString(),
		svc: svc,
		req: req,
		v1:  typedDataV1.MatchString(req.Method),
	}
	switch {
	case req.Account.IsWatch():
		s.reason = msgWatchOnly
	case req.Account.IsGnosis():
		s.reason = msgSafeCannotSign
	}

	if !s.v1 {
		typed, chainID, err := parseTypedData(req.Params)
		if err != nil {
			return nil, errno.Wrap(errno.ErrInvalidParam, err)
		}
		s.typed = typed
		s.chainID = chainID
	}

	s.sec = security.New(req.Account.Address, s.v1, svc.opts.SecurityTimeout, svc.failureReporter())
	if !s.v1 {
		go s.sec.Run(s.checkContext(), s.typedCheck())
	}
	return s, nil
}

// parseTypedData reads params[1], which is the typed data JSON encoded as a string or,
// from some dapps, as an object.
func parseTypedData(params []json.RawMessage) (json.RawMessage, int64, error) {
	if len(params) < 2 {
		return nil, 0, errors.New("typed data is missing")
	}
	raw := params[1]
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		raw = json.RawMessage(str)
	}
	var typed struct {
		Domain struct {
			ChainID json.RawMessage `json:"chainId"`
		} `json:"domain"`
	}
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, 0, fmt.Errorf("parse typed data: %w", err)
	}
	return raw, domainChainID(typed.Domain.ChainID), nil
}

// domainChainID accepts a number, a decimal string or a hex string; 0 when absent.
func domainChainID(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			return v
		}
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.ParseInt(str, 0, 64); err == nil {
			return v
		}
	}
	return 0
}

func (s *SignSession) checkContext() context.Context {
	return reporter.WithSessionID(context.Background(), s.ID)
}

func (s *SignSession) typedCheck() security.CheckFunc {
	engine := s.svc.deps.Security
	addr, origin, data := s.req.Account.Address, s.req.Origin, s.typed
	return func(ctx context.Context) (model.SecurityCheckResult, error) {
		if engine == nil {
			return model.SecurityCheckResult{}, errors.New("security engine not configured")
		}
		return engine.CheckTypedData(ctx, addr, origin, data)
	}
}

// CheckNow runs the on-demand check of v1 typed data against the whole params list, and
// waits for it. It is a no-op when the decision is already resolved.
func (s *SignSession) CheckNow(ctx context.Context) security.State {
	if !s.v1 {
		select {
		case <-s.sec.Done():
		case <-ctx.Done():
		}
		return s.sec.State()
	}
	engine := s.svc.deps.Security
	addr, origin := s.req.Account.Address, s.req.Origin
	text, _ := json.Marshal(s.req.Params)
	s.sec.Run(reporter.WithSessionID(ctx, s.ID), func(ctx context.Context) (model.SecurityCheckResult, error) {
		if engine == nil {
			return model.SecurityCheckResult{}, errors.New("security engine not configured")
		}
		return engine.CheckText(ctx, addr, origin, string(text))
	})
	return s.sec.State()
}

func (s *SignSession) SetForceProcess(force bool) error {
	if err := s.sec.SetForceProcess(force); err != nil {
		return errno.Wrap(errno.ErrSecurityCheckNotMet, err)
	}
	return nil
}

// Allow permits signing when the decision is pass or still pending. Other decisions need
// doubleCheck, and then the force-process override.
func (s *SignSession) Allow(doubleCheck bool) error {
	if s.reason != "" {
		return errno.Wrap(errno.ErrCannotProcess, errors.New(s.reason))
	}
	st := s.sec.State()
	if st.Decision == model.DecisionPass || st.Decision == model.DecisionPending {
		return nil
	}
	if !doubleCheck {
		return errno.Wrap(errno.ErrSecurityCheckNotMet, ErrNeedsDoubleCheck)
	}
	if !st.Decision.Resolved() {
		return ErrSecurityPending
	}
	if !st.Permits() {
		return errno.Wrap(errno.ErrSecurityCheckNotMet, ErrSecurityForbidden)
	}
	return nil
}

func (s *SignSession) Snapshot() SignSnapshot {
	return SignSnapshot{
		ID:                  s.ID,
		Method:              s.req.Method,
		ChainID:             s.chainID,
		CanProcess:          s.reason == "",
		CannotProcessReason: s.reason,
		Security:            s.sec.State(),
	}
}
