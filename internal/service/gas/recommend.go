package gas

import (
	"context"
	"fmt"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

// MockNonce stands in for a missing nonce when asking remote services to explain a tx.
const MockNonce = "0x1"

// HistoryGasEstimator looks up how much gas comparable calls from the address consumed.
type HistoryGasEstimator interface {
	HistoryGasUsed(ctx context.Context, req model.HistoryGasRequest) (uint64, error)
}

// Recommendation is the base gas figure before the chain ratio is applied.
// NeedRatio is false only for the fallback, which is not a measurement.
type Recommendation struct {
	Gas       uint64 `json:"gas"`
	NeedRatio bool   `json:"needRatio"`
}

// ExplainTx fills the fields remote explain services require.
func ExplainTx(tx model.TxIntent) model.TxIntent {
	if tx.Nonce == "" {
		tx.Nonce = MockNonce
	}
	if tx.Value == "" {
		tx.Value = "0x0"
	}
	if tx.Data == "" {
		tx.Data = "0x"
	}
	return tx
}

// Recommend picks the first positive figure among the simulated gas, the gas already on
// the transaction and the history service, falling back to policy.FallbackGas.
//
// A history lookup failure is returned alongside the fallback recommendation; it is never fatal.
func Recommend(ctx context.Context, simulatedGas uint64, tx model.TxIntent, history HistoryGasEstimator, policy Policy) (Recommendation, error) {
	if simulatedGas > 0 {
		return Recommendation{Gas: simulatedGas, NeedRatio: true}, nil
	}
	if g, ok := hexnum.Uint64(tx.Gas); ok && g > 0 {
		return Recommendation{Gas: g, NeedRatio: true}, nil
	}

	fallback := Recommendation{Gas: policy.FallbackGas, NeedRatio: false}
	if history == nil {
		return fallback, nil
	}
	used, err := history.HistoryGasUsed(ctx, model.HistoryGasRequest{Tx: ExplainTx(tx), UserAddr: tx.From})
	if err != nil {
		return fallback, fmt.Errorf("history gas used: %w", err)
	}
	if used > 0 {
		return Recommendation{Gas: used, NeedRatio: true}, nil
	}
	return fallback, nil
}
