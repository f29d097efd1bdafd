package model

// PreExecRequest is sent to the pre-execution service.
type PreExecRequest struct {
	Tx            TxIntent   `json:"tx"`
	Origin        string     `json:"origin"`
	Address       string     `json:"address"`
	UpdateNonce   bool       `json:"update_nonce"`
	PendingTxList []TxIntent `json:"pending_tx_list"`
}

type PreExecStatus struct {
	Success bool   `json:"success"`
	ErrMsg  string `json:"err_msg,omitempty"`
}

type GasEstimate struct {
	GasUsed          uint64  `json:"gas_used"`
	EstimatedSeconds int     `json:"estimated_seconds"`
	EstimatedCostUSD float64 `json:"estimated_gas_cost_usd_value"`
}

type NativeToken struct {
	Symbol   string  `json:"symbol"`
	Decimals int     `json:"decimals"`
	Price    float64 `json:"price"`
}

type TokenAmount struct {
	ID     string  `json:"id"`
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
}

type TypeSend struct {
	ToAddr string      `json:"to_addr"`
	Token  TokenAmount `json:"token"`
}

type TypeTokenApproval struct {
	SpenderID   string      `json:"spender"`
	Token       TokenAmount `json:"token"`
	TokenAmount float64     `json:"token_amount"`
	IsInfinity  bool        `json:"is_infinity"`
}

type TypeNFTApproval struct {
	SpenderID    string `json:"spender"`
	CollectionID string `json:"collection_id,omitempty"`
	NFTID        string `json:"nft_id,omitempty"`
}

type TypeNFTSend struct {
	ToAddr string `json:"to_addr"`
	NFTID  string `json:"nft_id"`
	Amount int    `json:"amount"`
}

type TypeListNFT struct {
	OfferCount int `json:"offer_count"`
}

type TypeCall struct {
	Action   string `json:"action"`
	Contract string `json:"contract"`
}

// SimulationResult is the pre-execution explanation. Exactly one type_* field is
// expected to be set; the review engine classifies on it once.
type SimulationResult struct {
	PreExec     PreExecStatus `json:"pre_exec"`
	Gas         GasEstimate   `json:"gas"`
	NativeToken NativeToken   `json:"native_token"`

	TypeDeployContract              *struct{}          `json:"type_deploy_contract,omitempty"`
	TypeCancelTx                    *struct{}          `json:"type_cancel_tx,omitempty"`
	TypeCancelSingleNFTApproval     *TypeNFTApproval   `json:"type_cancel_single_nft_approval,omitempty"`
	TypeCancelNFTCollectionApproval *TypeNFTApproval   `json:"type_cancel_nft_collection_approval,omitempty"`
	TypeCancelTokenApproval         *TypeTokenApproval `json:"type_cancel_token_approval,omitempty"`
	TypeSingleNFTApproval           *TypeNFTApproval   `json:"type_single_nft_approval,omitempty"`
	TypeNFTCollectionApproval       *TypeNFTApproval   `json:"type_nft_collection_approval,omitempty"`
	TypeNFTSend                     *TypeNFTSend       `json:"type_nft_send,omitempty"`
	TypeTokenApproval               *TypeTokenApproval `json:"type_token_approval,omitempty"`
	TypeSend                        *TypeSend          `json:"type_send,omitempty"`
	TypeListNFT                     *TypeListNFT       `json:"type_list_nft,omitempty"`
	TypeCall                        *TypeCall          `json:"type_call,omitempty"`
}

// HistoryGasRequest asks the gas history service how much a similar call used.
type HistoryGasRequest struct {
	Tx       TxIntent `json:"tx"`
	UserAddr string   `json:"user_addr"`
}
