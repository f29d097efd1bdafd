// Package openapi is the HTTP client of the wallet backend: pre-execution, gas market,
// gas history and the security engine.
package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/config"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/logger"
)

const maxErrorBody = 512

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openapi %s: status %d: %s", e.Path, e.Status, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
	servers map[int64]string // chain id -> server id
	log     *zap.Logger
}

func NewClient(cfg config.OpenAPIConfig, chains []config.ChainConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	servers := make(map[int64]string, len(chains))
	for _, c := range chains {
		servers[c.ID] = c.ServerID
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		servers: servers,
		log:     logger.Named("openapi"),
	}
}

func (c *Client) serverID(chainID int64) (string, error) {
	id, ok := c.servers[chainID]
	if !ok || id == "" {
		return "", errno.Wrap(errno.ErrChainNotFound, fmt.Errorf("chain %d", chainID))
	}
	return id, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openapi %s: %w", path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("openapi call", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Path: path, Status: resp.StatusCode, Body: string(msg)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openapi %s: decode: %w", path, err)
	}
	return nil
}

type preExecBody struct {
	Tx            wireTx   `json:"tx"`
	Origin        string   `json:"origin"`
	Address       string   `json:"address"`
	UpdateNonce   bool     `json:"update_nonce"`
	PendingTxList []wireTx `json:"pending_tx_list"`
}

// wireTx carries the chain as its server id, which is what the backend keys on.
type wireTx struct {
	model.TxIntent
	ChainID string `json:"chainId"`
}

func (c *Client) wire(tx model.TxIntent) (wireTx, error) {
	id, err := c.serverID(tx.ChainID)
	if err != nil {
		return wireTx{}, err
	}
	return wireTx{TxIntent: tx, ChainID: id}, nil
}

// PreExec simulates tx on top of the pending list.
func (c *Client) PreExec(ctx context.Context, req model.PreExecRequest) (model.SimulationResult, error) {
	var res model.SimulationResult
	tx, err := c.wire(req.Tx)
	if err != nil {
		return res, err
	}
	body := preExecBody{Tx: tx, Origin: req.Origin, Address: req.Address, UpdateNonce: req.UpdateNonce}
	for _, p := range req.PendingTxList {
		w, err := c.wire(p)
		if err != nil {
			return res, err
		}
		body.PendingTxList = append(body.PendingTxList, w)
	}
	err = c.do(ctx, http.MethodPost, "/v1/wallet/pre_exec_tx", nil, body, &res)
	return res, err
}

// HistoryGasUsed returns gas_used of comparable past calls, 0 when unknown.
func (c *Client) HistoryGasUsed(ctx context.Context, req model.HistoryGasRequest) (uint64, error) {
	tx, err := c.wire(req.Tx)
	if err != nil {
		return 0, err
	}
	var out struct {
		GasUsed uint64 `json:"gas_used"`
	}
	body := map[string]interface{}{"tx": tx, "user_addr": req.UserAddr}
	if err := c.do(ctx, http.MethodPost, "/v1/wallet/history_tx_used_gas", nil, body, &out); err != nil {
		return 0, err
	}
	return out.GasUsed, nil
}

// GasMarket returns the server tiers; a positive customPrice (wei) seeds the custom tier.
func (c *Client) GasMarket(ctx context.Context, chainID int64, customPrice decimal.Decimal) ([]model.GasLevel, error) {
	id, err := c.serverID(chainID)
	if err != nil {
		return nil, err
	}
	q := url.Values{"chain_id": {id}}
	if customPrice.IsPositive() {
		q.Set("custom_price", customPrice.String())
	}
	var levels []model.GasLevel
	if err := c.do(ctx, http.MethodGet, "/v1/wallet/gas_market", q, nil, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// CheckTx classifies a transaction against the security engine rules.
func (c *Client) CheckTx(ctx context.Context, tx model.TxIntent, origin, address string) (model.SecurityCheckResult, error) {
	var res model.SecurityCheckResult
	w, err := c.wire(tx)
	if err != nil {
		return res, err
	}
	body := map[string]interface{}{"tx": w, "origin": origin, "user_addr": address}
	err = c.do(ctx, http.MethodPost, "/v1/wallet/check_tx", nil, body, &res)
	return res, err
}

// CheckTypedData classifies an EIP-712 payload.
func (c *Client) CheckTypedData(ctx context.Context, address, origin string, data json.RawMessage) (model.SecurityCheckResult, error) {
	var res model.SecurityCheckResult
	body := map[string]interface{}{"user_addr": address, "origin": origin, "data": data}
	err := c.do(ctx, http.MethodPost, "/v1/wallet/check_typed_data", nil, body, &res)
	return res, err
}

// CheckText classifies a personal_sign message.
func (c *Client) CheckText(ctx context.Context, address, origin, text string) (model.SecurityCheckResult, error) {
	var res model.SecurityCheckResult
	body := map[string]interface{}{"user_addr": address, "origin": origin, "text": text}
	err := c.do(ctx, http.MethodPost, "/v1/wallet/check_text", nil, body, &res)
	return res, err
}
