package gas

import (
	"math/big"

	"github.com/web3nomad/Rabby/internal/model"
)

// AdjustInput is everything the balance-constrained gas limit depends on.
type AdjustInput struct {
	Balance             *big.Int
	Value               *big.Int
	GasPrice            *big.Int
	Nonce               uint64
	Pending             []model.PendingTransaction
	RecommendedGasLimit uint64
	Ratio               float64
	BlockGasLimit       uint64 // 0 when the latest block is unknown
}

// Reserved sums value + gasUsed*gasPrice over every pending entry below nonce.
// Variants sharing a nonce are all counted.
func Reserved(pending []model.PendingTransaction, nonce uint64) *big.Int {
	sum := new(big.Int)
	for _, p := range pending {
		if p.Nonce >= nonce {
			continue
		}
		cost := new(big.Int).Mul(p.GasUnits(), p.PriceWei())
		sum.Add(sum, p.ValueWei())
		sum.Add(sum, cost)
	}
	return sum
}

// AffordableGasLimit caps the recommended limit by what the balance can still pay for
// once the tx value and the queued transactions are accounted for.
func AffordableGasLimit(in AdjustInput, minGas uint64) uint64 {
	full := Limit(in.RecommendedGasLimit, in.Ratio)
	result := affordable(in, full, minGas)
	if in.BlockGasLimit > 0 && result > in.BlockGasLimit {
		result = in.BlockGasLimit
	}
	return result
}

func affordable(in AdjustInput, full, minGas uint64) uint64 {
	balance := in.Balance
	if balance == nil {
		balance = new(big.Int)
	}
	spent := new(big.Int).Add(Reserved(in.Pending, in.Nonce), valueOrZero(in.Value))
	avail := new(big.Int).Sub(balance, spent)
	if avail.Sign() <= 0 {
		return minGas
	}

	price := in.GasPrice
	if price == nil || price.Sign() <= 0 {
		return full
	}
	need := new(big.Int).Mul(price, new(big.Int).SetUint64(full))
	if avail.Cmp(need) > 0 {
		return full
	}

	adapted := new(big.Int).Quo(avail, price)
	if !adapted.IsUint64() || adapted.Uint64() < minGas {
		return minGas
	}
	return adapted.Uint64()
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil || v.Sign() < 0 {
		return new(big.Int)
	}
	return v
}
