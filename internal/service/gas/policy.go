// Package gas derives gas limits, fee-market values and cost estimates for a reviewed transaction.
package gas

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/web3nomad/Rabby/pkg/config"
)

const (
	MinGasLimit  uint64  = 21000
	FallbackGas  uint64  = 1000000
	DefaultRatio float64 = 1.5
)

// Policy holds the chain-dependent gas rules.
type Policy struct {
	MinGasLimit       uint64
	FallbackGas       uint64
	DefaultRatio      float64
	ChainRatios       map[int64]float64
	PriorityFeeChains map[int64]bool
	L1FeeChains       map[int64]bool
}

// DefaultPolicy mirrors the shipped configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MinGasLimit:       MinGasLimit,
		FallbackGas:       FallbackGas,
		DefaultRatio:      DefaultRatio,
		ChainRatios:       map[int64]float64{1284: 4, 1285: 4, 1287: 4},
		PriorityFeeChains: map[int64]bool{1: true},
		L1FeeChains:       map[int64]bool{10: true},
	}
}

// PolicyFromConfig builds the policy from the gas and chains config sections.
// Zero values fall back to DefaultPolicy.
func PolicyFromConfig(gc config.GasConfig, chains []config.ChainConfig) Policy {
	p := DefaultPolicy()
	if gc.MinGasLimit > 0 {
		p.MinGasLimit = gc.MinGasLimit
	}
	if gc.FallbackGas > 0 {
		p.FallbackGas = gc.FallbackGas
	}
	if gc.DefaultRatio > 0 {
		p.DefaultRatio = gc.DefaultRatio
	}
	if len(gc.ChainRatios) > 0 {
		p.ChainRatios = gc.ChainRatios
	}
	if len(gc.PriorityFeeChains) > 0 {
		p.PriorityFeeChains = make(map[int64]bool, len(gc.PriorityFeeChains))
		for _, id := range gc.PriorityFeeChains {
			p.PriorityFeeChains[id] = true
		}
	}
	if len(chains) > 0 {
		p.L1FeeChains = make(map[int64]bool)
		for _, c := range chains {
			if c.L1Fee {
				p.L1FeeChains[c.ID] = true
			}
		}
	}
	return p
}

// Ratio is the multiplier for a measured gas figure on chainID. Unmeasured figures get 1.
func (p Policy) Ratio(chainID int64, needRatio bool) float64 {
	if !needRatio {
		return 1
	}
	if r, ok := p.ChainRatios[chainID]; ok && r > 0 {
		return r
	}
	return p.DefaultRatio
}

// HighUncertaintyRatio is the largest ratio the policy can hand out. Gas limits recommended
// with it get graded warn/danger thresholds instead of a single warn.
func (p Policy) HighUncertaintyRatio() float64 {
	high := p.DefaultRatio
	for _, r := range p.ChainRatios {
		if r > high {
			high = r
		}
	}
	return high
}

// Limit applies ratio to gas, rounding half up.
func Limit(gas uint64, ratio float64) uint64 {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(gas), 0)
	return d.Mul(decimal.NewFromFloat(ratio)).Round(0).BigInt().Uint64()
}
