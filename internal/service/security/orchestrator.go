// Package security drives the asynchronous security-engine decision of one review request.
package security

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/logger"
	"github.com/web3nomad/Rabby/pkg/monitor"
)

const UnavailableAlert = "Security engine service is temporarily unavailable"

var (
	ErrForbidden     = errors.New("security decision is forbidden")
	ErrUnknownResult = errors.New("unknown security decision")
)

// CheckFunc calls the security engine for the request under review.
type CheckFunc func(ctx context.Context) (model.SecurityCheckResult, error)

// FailureReporter receives security engine failures for observability.
type FailureReporter interface {
	SecurityCheckFailed(ctx context.Context, address string, err error)
}

// State is a snapshot of the orchestrator.
type State struct {
	Decision     model.Decision             `json:"decision"`
	Result       *model.SecurityCheckResult `json:"result,omitempty"`
	ForceProcess bool                       `json:"forceProcess"`
}

// Orchestrator moves pending → loading → one resolved decision, once.
type Orchestrator struct {
	address  string
	timeout  time.Duration
	reporter FailureReporter
	log      *zap.Logger

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// New returns an orchestrator in loading, or in pending when the check is started on demand.
func New(address string, onDemand bool, timeout time.Duration, reporter FailureReporter) *Orchestrator {
	d := model.DecisionLoading
	if onDemand {
		d = model.DecisionPending
	}
	return &Orchestrator{
		address:  address,
		timeout:  timeout,
		reporter: reporter,
		log:      logger.Named("security"),
		state:    State{Decision: d},
		done:     make(chan struct{}),
	}
}

// Run calls check and resolves the decision. It is a no-op once resolved. A failing or
// malformed response resolves to pass with the unavailable advisory.
func (o *Orchestrator) Run(ctx context.Context, check CheckFunc) {
	o.mu.Lock()
	if o.state.Decision.Resolved() {
		o.mu.Unlock()
		return
	}
	o.state.Decision = model.DecisionLoading
	o.mu.Unlock()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	res, err := check(ctx)
	if err == nil && !res.Decision.Resolved() {
		err = fmt.Errorf("%w: %q", ErrUnknownResult, res.Decision)
	}
	if err != nil {
		monitor.SecurityFailure(failureKind(err))
		o.log.Warn("security check failed", zap.String("address", o.address), zap.Error(err))
		if o.reporter != nil {
			o.reporter.SecurityCheckFailed(ctx, o.address, err)
		}
		res = Unavailable()
	}
	o.resolve(res)
}

func (o *Orchestrator) resolve(res model.SecurityCheckResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Decision.Resolved() {
		return
	}
	o.state = State{
		Decision:     res.Decision,
		Result:       &res,
		ForceProcess: res.Decision != model.DecisionForbidden,
	}
	monitor.SecurityDecision(string(res.Decision))
	close(o.done)
}

// Unavailable is the result used when the engine cannot be reached.
func Unavailable() model.SecurityCheckResult {
	return model.SecurityCheckResult{
		Decision:      model.DecisionPass,
		Alert:         UnavailableAlert,
		TraceID:       "",
		DangerList:    []model.SecurityRule{},
		WarningList:   []model.SecurityRule{},
		ForbiddenList: []model.SecurityRule{},
		Error:         &model.SecurityError{Code: errno.CodeSecurityUnavailable, Msg: UnavailableAlert},
	}
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrUnknownResult):
		return "malformed"
	}
	return "error"
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Done is closed once the decision is resolved.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// SetForceProcess toggles the user's override. It can never be enabled on forbidden.
func (o *Orchestrator) SetForceProcess(force bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if force && o.state.Decision == model.DecisionForbidden {
		return ErrForbidden
	}
	o.state.ForceProcess = force
	return nil
}

// Permits reports whether the decision lets submission proceed.
func (s State) Permits() bool {
	switch s.Decision {
	case model.DecisionPass:
		return true
	case model.DecisionWarn, model.DecisionDanger:
		return s.ForceProcess
	}
	return false
}
