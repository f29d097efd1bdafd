package model

import (
	"math/big"

	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

// PendingTransaction is one entry of the local outbound queue. Entries sharing a
// nonce are rebroadcast or speed-up variants of the same slot.
type PendingTransaction struct {
	ChainID      int64  `json:"chainId"`
	Hash         string `json:"hash"`
	Nonce        uint64 `json:"nonce"`
	From         string `json:"from"`
	To           string `json:"to"`
	Data         string `json:"data,omitempty"`
	Value        string `json:"value"`
	GasPrice     string `json:"gasPrice,omitempty"`
	MaxFeePerGas string `json:"maxFeePerGas,omitempty"`
	GasUsed      uint64 `json:"gasUsed,omitempty"`
	GasLimit     string `json:"gasLimit,omitempty"`
	Gas          string `json:"gas,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

// PriceWei is gasPrice || maxFeePerGas || 0.
func (p PendingTransaction) PriceWei() *big.Int {
	if v, ok := hexnum.Big(p.GasPrice); ok && v.Sign() > 0 {
		return v
	}
	return hexnum.BigOrZero(p.MaxFeePerGas)
}

// GasUnits is gasUsed || gasLimit || gas || 0.
func (p PendingTransaction) GasUnits() *big.Int {
	if p.GasUsed > 0 {
		return new(big.Int).SetUint64(p.GasUsed)
	}
	if v, ok := hexnum.Big(p.GasLimit); ok && v.Sign() > 0 {
		return v
	}
	return hexnum.BigOrZero(p.Gas)
}

// ValueWei is the transferred native amount, zero when malformed.
func (p PendingTransaction) ValueWei() *big.Int {
	return hexnum.BigOrZero(p.Value)
}
