package event

import (
	"encoding/json"
	"time"
)

// Topic: review_events (Redis Stream 名称与 Kafka topic 相同)
const (
	TypeSecurityCheckFailed = "security_check_failed"
	TypeBestEffortFailure   = "best_effort_failure"
	TypeSubmitted           = "review_submitted"
)

// SecurityCheckFailedEvent 安全引擎不可用, 已降级为 pass
type SecurityCheckFailedEvent struct {
	SessionID string    `json:"session_id,omitempty"`
	Address   string    `json:"address"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// BestEffortFailureEvent 非致命读取失败 (区块信息, 本地 nonce, L1 fee 等)
type BestEffortFailureEvent struct {
	SessionID string    `json:"session_id,omitempty"`
	Stage     string    `json:"stage"`
	ChainID   int64     `json:"chain_id"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// SubmittedEvent 交易通过评审, 交给签名器
type SubmittedEvent struct {
	SessionID string    `json:"session_id"`
	ChainID   int64     `json:"chain_id"`
	From      string    `json:"from"`
	Nonce     string    `json:"nonce"`
	Gas       string    `json:"gas"`
	GasLevel  string    `json:"gas_level"`
	TraceID   string    `json:"trace_id,omitempty"`
	Category  string    `json:"category"`
	Findings  []int     `json:"findings,omitempty"`
	At        time.Time `json:"at"`
}

// Envelope is what the CLI prints when following the stream.
type Envelope struct {
	Type    string          `json:"type"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload"`
}
