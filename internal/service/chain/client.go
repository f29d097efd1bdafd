// Package chain reads account and block state from the configured EVM RPC endpoints.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/config"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/logger"
	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

// GasPriceOracle predeploy on OP stack chains.
var GasPriceOracle = common.HexToAddress("0x420000000000000000000000000000000000000F")

const oracleABIJSON = `[{"inputs":[{"internalType":"bytes","name":"_data","type":"bytes"}],"name":"getL1Fee","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

const safeABIJSON = `[{"inputs":[],"name":"nonce","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var (
	oracleABI = mustABI(oracleABIJSON)
	safeABI   = mustABI(safeABIJSON)
)

func mustABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Client dials each configured chain lazily and keeps the connection.
type Client struct {
	urls map[int64]string
	log  *zap.Logger

	mu      sync.Mutex
	clients map[int64]*ethclient.Client
}

func NewClient(chains []config.ChainConfig) *Client {
	urls := make(map[int64]string, len(chains))
	for _, c := range chains {
		if c.RpcUrl != "" {
			urls[c.ID] = c.RpcUrl
		}
	}
	return &Client{
		urls:    urls,
		log:     logger.Named("chain"),
		clients: make(map[int64]*ethclient.Client),
	}
}

func (c *Client) eth(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ec, ok := c.clients[chainID]; ok {
		return ec, nil
	}
	url, ok := c.urls[chainID]
	if !ok {
		return nil, errno.Wrap(errno.ErrChainNotFound, fmt.Errorf("chain %d", chainID))
	}
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial chain %d: %w", chainID, err)
	}
	c.log.Info("rpc connected", zap.Int64("chain_id", chainID))
	c.clients[chainID] = ec
	return ec, nil
}

func address(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, errno.Wrap(errno.ErrInvalidParam, fmt.Errorf("bad address %q", s))
	}
	return common.HexToAddress(s), nil
}

// NonceAt is eth_getTransactionCount(address, "latest").
func (c *Client) NonceAt(ctx context.Context, chainID int64, addr string) (uint64, error) {
	a, err := address(addr)
	if err != nil {
		return 0, err
	}
	ec, err := c.eth(ctx, chainID)
	if err != nil {
		return 0, err
	}
	return ec.NonceAt(ctx, a, nil)
}

// BalanceAt is eth_getBalance(address, "latest").
func (c *Client) BalanceAt(ctx context.Context, chainID int64, addr string) (*big.Int, error) {
	a, err := address(addr)
	if err != nil {
		return nil, err
	}
	ec, err := c.eth(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return ec.BalanceAt(ctx, a, nil)
}

// BlockGasLimit reads only gasLimit of the latest block.
func (c *Client) BlockGasLimit(ctx context.Context, chainID int64) (uint64, error) {
	ec, err := c.eth(ctx, chainID)
	if err != nil {
		return 0, err
	}
	var head struct {
		GasLimit hexutil.Uint64 `json:"gasLimit"`
	}
	if err := ec.Client().CallContext(ctx, &head, "eth_getBlockByNumber", "latest", false); err != nil {
		return 0, err
	}
	return uint64(head.GasLimit), nil
}

// EstimateL1Fee asks the GasPriceOracle what posting the unsigned tx to L1 costs.
func (c *Client) EstimateL1Fee(ctx context.Context, chainID int64, tx model.TxIntent) (*big.Int, error) {
	raw, err := UnsignedRLP(tx)
	if err != nil {
		return nil, err
	}
	input, err := oracleABI.Pack("getL1Fee", raw)
	if err != nil {
		return nil, err
	}
	out, err := c.call(ctx, chainID, GasPriceOracle, input)
	if err != nil {
		return nil, err
	}
	return unpackUint(oracleABI, "getL1Fee", out)
}

// SafeNonce calls nonce() on the Safe contract.
func (c *Client) SafeNonce(ctx context.Context, chainID int64, safe string) (uint64, error) {
	a, err := address(safe)
	if err != nil {
		return 0, err
	}
	input, err := safeABI.Pack("nonce")
	if err != nil {
		return 0, err
	}
	out, err := c.call(ctx, chainID, a, input)
	if err != nil {
		return 0, err
	}
	n, err := unpackUint(safeABI, "nonce", out)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("safe nonce overflows: %s", n)
	}
	return n.Uint64(), nil
}

func (c *Client) call(ctx context.Context, chainID int64, to common.Address, input []byte) ([]byte, error) {
	ec, err := c.eth(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return ec.CallContract(ctx, ethereum.CallMsg{To: &to, Data: input}, nil)
}

func unpackUint(parsed abi.ABI, method string, out []byte) (*big.Int, error) {
	vals, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("unpack %s: %d values", method, len(vals))
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected %T", method, vals[0])
	}
	return v, nil
}

// UnsignedRLP encodes tx as an unsigned legacy transaction, the payload the oracle prices.
func UnsignedRLP(tx model.TxIntent) ([]byte, error) {
	var to *common.Address
	if tx.To != "" {
		a, err := address(tx.To)
		if err != nil {
			return nil, err
		}
		to = &a
	}
	var data []byte
	if tx.Data != "" && tx.Data != "0x" {
		d, err := hexutil.Decode(tx.Data)
		if err != nil {
			return nil, errno.Wrap(errno.ErrInvalidTransaction, fmt.Errorf("data: %w", err))
		}
		data = d
	}
	nonce, _ := hexnum.Uint64(tx.Nonce)
	gas, _ := hexnum.Uint64(tx.Gas)

	legacy := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: hexnum.BigOrZero(tx.Price()),
		Gas:      gas,
		To:       to,
		Value:    hexnum.BigOrZero(tx.Value),
		Data:     data,
	})
	return legacy.MarshalBinary()
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ec := range c.clients {
		ec.Close()
		delete(c.clients, id)
	}
}
