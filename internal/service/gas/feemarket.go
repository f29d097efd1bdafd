package gas

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

var (
	ErrGasPriceMissing     = errors.New("gas price is missing")
	ErrPriorityAboveMaxFee = errors.New("max priority fee exceeds max fee")
)

// MaxPriorityFee suggests the tip for target on chainID.
//
// On priority-fee chains the tip is the target price minus the base fee of the cheapest
// market tier, and zero when the target is below that tier. Elsewhere the whole tier
// price is used as the tip.
func (p Policy) MaxPriorityFee(chainID int64, levels []model.GasLevel, target model.GasLevel) decimal.Decimal {
	if !p.PriorityFeeChains[chainID] {
		return target.Price
	}
	cheapest, ok := cheapestLevel(levels)
	if !ok {
		return target.Price
	}
	if target.Price.LessThan(cheapest.Price) {
		return decimal.Zero
	}
	tip := target.Price.Sub(cheapest.BaseFee)
	if tip.IsNegative() {
		return decimal.Zero
	}
	return tip
}

func cheapestLevel(levels []model.GasLevel) (model.GasLevel, bool) {
	var (
		best  model.GasLevel
		found bool
	)
	for _, l := range levels {
		if l.Level == model.GasLevelCustom {
			continue
		}
		if !found || l.Price.LessThan(best.Price) {
			best, found = l, true
		}
	}
	return best, found
}

// ConvertLegacyTo1559 moves gasPrice into maxFeePerGas and maxPriorityFeePerGas.
func ConvertLegacyTo1559(tx model.TxIntent) model.TxIntent {
	if tx.GasPrice == "" {
		return tx
	}
	tx.MaxFeePerGas = tx.GasPrice
	tx.MaxPriorityFeePerGas = tx.GasPrice
	tx.GasPrice = ""
	return tx
}

// ApplyPriorityFee sets maxPriorityFeePerGas from the suggested tip, using the max fee
// itself when the tip is not positive.
func ApplyPriorityFee(tx model.TxIntent, tip decimal.Decimal) model.TxIntent {
	if tx.MaxFeePerGas == "" {
		return tx
	}
	if !tip.IsPositive() {
		tx.MaxPriorityFeePerGas = tx.MaxFeePerGas
		return tx
	}
	tx.MaxPriorityFeePerGas = hexnum.FromBig(tip.Floor().BigInt())
	return tx
}

// ValidateGasPriceRange rejects a tx without a positive price and a tip above the max fee.
func ValidateGasPriceRange(tx model.TxIntent) error {
	price, ok := hexnum.Big(tx.Price())
	if !ok || price.Sign() <= 0 {
		return ErrGasPriceMissing
	}
	if tx.MaxFeePerGas == "" || tx.MaxPriorityFeePerGas == "" {
		return nil
	}
	maxFee := hexnum.BigOrZero(tx.MaxFeePerGas)
	tip := hexnum.BigOrZero(tx.MaxPriorityFeePerGas)
	if tip.Cmp(maxFee) > 0 {
		return ErrPriorityAboveMaxFee
	}
	return nil
}

// GweiToWei converts a user-typed gwei amount.
func GweiToWei(gwei decimal.Decimal) *big.Int {
	return gwei.Shift(9).Floor().BigInt()
}
