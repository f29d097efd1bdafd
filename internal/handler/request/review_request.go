package request

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type AccountRequest struct {
	Address string `json:"address" binding:"required,eth_addr"`
	Type    string `json:"type" binding:"required"`
}

// OpenReviewRequest carries the dapp transaction exactly as received; quantities may be
// numbers, decimal strings or hex strings.
type OpenReviewRequest struct {
	Tx            map[string]interface{} `json:"tx" binding:"required"`
	Origin        string                 `json:"origin"`
	Account       AccountRequest         `json:"account" binding:"required"`
	SafeNetworkID int64                  `json:"safeNetworkId" binding:"min=0"`
}

type GasChangeRequest struct {
	Level    string          `json:"level" binding:"required,oneof=slow normal fast custom"`
	Price    decimal.Decimal `json:"price"` // wei, custom tier only
	GasLimit string          `json:"gasLimit" binding:"required"`
	Nonce    uint64          `json:"nonce"`
}

type CustomGasRequest struct {
	Gwei decimal.Decimal `json:"gwei" binding:"required"`
}

type ToggleRequest struct {
	Value *bool `json:"value" binding:"required"`
}

type AllowRequest struct {
	DoubleCheck bool `json:"doubleCheck"`
}

type OpenSignRequest struct {
	Method  string            `json:"method" binding:"required"`
	Params  []json.RawMessage `json:"params" binding:"required,min=1"`
	Origin  string            `json:"origin"`
	Account AccountRequest    `json:"account" binding:"required"`
}

// PendingTxRequest records a transaction the wallet has broadcast.
type PendingTxRequest struct {
	ChainID      int64  `json:"chainId" binding:"required,gt=0"`
	Hash         string `json:"hash" binding:"required"`
	Nonce        uint64 `json:"nonce"`
	From         string `json:"from" binding:"required,eth_addr"`
	To           string `json:"to"`
	Data         string `json:"data"`
	Value        string `json:"value"`
	GasPrice     string `json:"gasPrice"`
	MaxFeePerGas string `json:"maxFeePerGas"`
	GasUsed      uint64 `json:"gasUsed"`
	GasLimit     string `json:"gasLimit"`
}

// PendingQuery selects one account's queue.
type PendingQuery struct {
	ChainID int64  `form:"chainId" binding:"required,gt=0"`
	Address string `form:"address" binding:"required,eth_addr"`
}
