package model

import "strings"

// TxIntent is the canonical transaction under review. Numeric fields hold
// minimal-width 0x-prefixed hex once normalized; empty means absent.
type TxIntent struct {
	ChainID              int64  `json:"chainId"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	Data                 string `json:"data"`
	Value                string `json:"value"`
	Nonce                string `json:"nonce,omitempty"`
	Gas                  string `json:"gas,omitempty"`
	GasPrice             string `json:"gasPrice,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
}

// IsSelfSend reports a same-address transfer, the shape of a manual cancel.
func (t TxIntent) IsSelfSend() bool {
	return t.From != "" && strings.EqualFold(t.From, t.To)
}

// Price returns the legacy gas price, falling back to the 1559 max fee.
func (t TxIntent) Price() string {
	if t.GasPrice != "" {
		return t.GasPrice
	}
	return t.MaxFeePerGas
}

// RequestFlags are the wallet-internal markers carried on the signing request.
type RequestFlags struct {
	IsSpeedUp        bool `json:"isSpeedUp"`
	IsCancel         bool `json:"isCancel"`
	IsSend           bool `json:"isSend"`
	IsSwap           bool `json:"isSwap"`
	IsViewGnosisSafe bool `json:"isViewGnosisSafe"`
}

// Submission is the transaction handed to the external signer after approval.
type Submission struct {
	TxIntent
	IsSend  bool   `json:"isSend"`
	TraceID string `json:"traceId,omitempty"`
	Address string `json:"address"`
}
