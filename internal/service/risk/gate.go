// Package risk turns the reviewed gas, nonce and cost figures into user-facing findings.
package risk

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/gas"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/monitor"
)

const (
	MsgGasLimitBelowMinimum    = "Gas limit is less than 21000. Transaction can't be submitted"
	MsgGasLimitLow             = "Gas limit is low. There is 1% chance that the transaction may fail."
	MsgGasLimitTooLow          = "Gas limit is too low. There is 95% chance that the transaction may fail."
	MsgReservedGasInsufficient = "The reserved gas fee is not enough"
	msgNonceTooLow             = "Nonce is too low, the minimum should be %s"
)

// Input is one evaluation's worth of figures. Amounts are wei unless noted.
type Input struct {
	GasLimit            uint64
	Nonce               uint64
	RecommendedGasLimit uint64
	Ratio               float64
	RecommendedNonce    uint64
	MaxGasCost          decimal.Decimal // native units, L1 fee included
	Value               *big.Int
	Balance             *big.Int // nil when the balance read failed; skips affordability
	IsCancel            bool
	IsSpeedUp           bool
	IsMultisig          bool
}

type Gate struct {
	policy gas.Policy
}

func NewGate(policy gas.Policy) *Gate {
	return &Gate{policy: policy}
}

// Evaluate runs every rule and returns all hits in rule order.
func (g *Gate) Evaluate(in Input) []model.Finding {
	var findings []model.Finding

	if !in.IsMultisig {
		if in.GasLimit < g.policy.MinGasLimit {
			findings = append(findings, model.Finding{
				Code:     errno.CodeGasLimitBelowMinimum,
				Message:  MsgGasLimitBelowMinimum,
				Severity: model.SeverityForbidden,
			})
		} else if f, ok := g.gasLimitFinding(in); ok {
			findings = append(findings, f)
		}

		if in.Balance != nil && g.unaffordable(in) {
			findings = append(findings, model.Finding{
				Code:     errno.CodeReservedGasInsufficient,
				Message:  MsgReservedGasInsufficient,
				Severity: model.SeverityForbidden,
			})
		}
	}

	if in.Nonce < in.RecommendedNonce && !in.IsCancel && !in.IsSpeedUp {
		findings = append(findings, model.Finding{
			Code:    errno.CodeNonceTooLow,
			Message: fmt.Sprintf(msgNonceTooLow, new(big.Int).SetUint64(in.RecommendedNonce).String()),
		})
	}

	for _, f := range findings {
		monitor.Finding(f.Code, string(f.Severity))
	}
	return findings
}

// graded reports whether ratio is the policy's high-uncertainty tier, which gets
// danger/warn thresholds at 1x and ratio x instead of a single warn.
func (g *Gate) graded(ratio float64) bool {
	high := g.policy.HighUncertaintyRatio()
	return high > g.policy.DefaultRatio && ratio == high
}

func (g *Gate) gasLimitFinding(in Input) (model.Finding, bool) {
	if in.RecommendedGasLimit == 0 {
		return model.Finding{}, false
	}
	if in.GasLimit >= gas.Limit(in.RecommendedGasLimit, in.Ratio) {
		return model.Finding{}, false
	}

	low := model.Finding{Code: errno.CodeGasLimitLow, Message: MsgGasLimitLow, Severity: model.SeverityWarn}
	if !g.graded(in.Ratio) {
		return low, in.GasLimit < in.RecommendedGasLimit
	}
	// realRatio = gasLimit / recommended
	if in.GasLimit <= in.RecommendedGasLimit {
		return model.Finding{Code: errno.CodeGasLimitTooLow, Message: MsgGasLimitTooLow, Severity: model.SeverityDanger}, true
	}
	return low, true
}

func (g *Gate) unaffordable(in Input) bool {
	need := in.MaxGasCost.Add(gas.ToNative(in.Value))
	return need.GreaterThan(gas.ToNative(in.Balance))
}

// Blocking reports whether any finding disables submission outright.
func Blocking(findings []model.Finding) bool {
	for _, f := range findings {
		if f.Blocking() {
			return true
		}
	}
	return false
}

// NeedsAcknowledgement reports whether warn or danger findings are present.
func NeedsAcknowledgement(findings []model.Finding) bool {
	for _, f := range findings {
		if f.Severity == model.SeverityWarn || f.Severity == model.SeverityDanger {
			return true
		}
	}
	return false
}
