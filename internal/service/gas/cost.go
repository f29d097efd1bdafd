package gas

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/web3nomad/Rabby/internal/model"
)

// NativeDecimals is the scale of EVM native token base units.
const NativeDecimals = 18

// L1FeeEstimator returns the L1 data fee, in wei, a rollup charges for posting tx.
type L1FeeEstimator interface {
	EstimateL1Fee(ctx context.Context, chainID int64, tx model.TxIntent) (*big.Int, error)
}

// ToNative scales a wei amount to whole native tokens.
func ToNative(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -NativeDecimals)
}

type CostInput struct {
	ChainID          int64
	GasUsed          uint64
	GasLimit         uint64
	GasPrice         *big.Int
	NativeTokenPrice decimal.Decimal
	Tx               model.TxIntent
}

// Cost is expressed in native tokens, except GasCostUSD.
type Cost struct {
	GasCostAmount    decimal.Decimal `json:"gasCostAmount"`
	MaxGasCostAmount decimal.Decimal `json:"maxGasCostAmount"`
	GasCostUSD       decimal.Decimal `json:"gasCostUsd"`
	L1Fee            decimal.Decimal `json:"l1Fee"`
}

type CostExplainer struct {
	policy Policy
	l1     L1FeeEstimator
}

func NewCostExplainer(policy Policy, l1 L1FeeEstimator) *CostExplainer {
	return &CostExplainer{policy: policy, l1: l1}
}

// Explain computes the expected (gasUsed based) and worst-case (gasLimit based) cost.
// On L1-fee chains the estimator's fee is added to both before the USD conversion.
// If the estimator fails the L2-only cost is returned together with the error.
func (e *CostExplainer) Explain(ctx context.Context, in CostInput) (Cost, error) {
	price := in.GasPrice
	if price == nil {
		price = new(big.Int)
	}
	used := new(big.Int).Mul(new(big.Int).SetUint64(in.GasUsed), price)
	limit := new(big.Int).Mul(new(big.Int).SetUint64(in.GasLimit), price)

	cost := Cost{
		GasCostAmount:    ToNative(used),
		MaxGasCostAmount: ToNative(limit),
		L1Fee:            decimal.Zero,
	}

	var l1Err error
	if e.policy.L1FeeChains[in.ChainID] && e.l1 != nil {
		fee, err := e.l1.EstimateL1Fee(ctx, in.ChainID, in.Tx)
		if err != nil {
			l1Err = fmt.Errorf("estimate l1 fee: %w", err)
		} else {
			cost.L1Fee = ToNative(fee)
			cost.GasCostAmount = cost.GasCostAmount.Add(cost.L1Fee)
			cost.MaxGasCostAmount = cost.MaxGasCostAmount.Add(cost.L1Fee)
		}
	}

	cost.GasCostUSD = cost.GasCostAmount.Mul(in.NativeTokenPrice)
	return cost, l1Err
}
