package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client implements Transport over a JSON-RPC connection
type Client struct {
	rpc *rpc.Client
}

// Dial connects to a JSON-RPC endpoint (http, ws or ipc, decided by the URL
// scheme)
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}
	return &Client{rpc: c}, nil
}

// NewClient wraps an existing rpc connection
func NewClient(c *rpc.Client) *Client {
	return &Client{rpc: c}
}

// TransactionByHash fetches a transaction by hash; (nil, nil) if unknown
func (c *Client) TransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, error) {
	var tx *Transaction
	if err := c.rpc.CallContext(ctx, &tx, "eth_getTransactionByHash", hash); err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash: %w", err)
	}
	return tx, nil
}

// TransactionReceipt fetches a receipt by hash; (nil, nil) while not mined
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var r *Receipt
	if err := c.rpc.CallContext(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	return r, nil
}

// BlockNumber returns the current head block number
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.rpc.CallContext(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	return uint64(n), nil
}

// CallContract executes a read-only call against the latest state
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	args := map[string]interface{}{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	var out hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &out, "eth_call", args, "latest"); err != nil {
		return nil, fmt.Errorf("eth_call to %s: %w", to.Hex(), err)
	}
	return out, nil
}

// CodeAt returns the deployed bytecode at an address
func (c *Client) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	var code hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &code, "eth_getCode", address, "latest"); err != nil {
		return nil, fmt.Errorf("eth_getCode for %s: %w", address.Hex(), err)
	}
	return code, nil
}

// BalanceAt returns the native balance of an address (BalanceReader extension)
func (c *Client) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	var bal hexutil.Big
	if err := c.rpc.CallContext(ctx, &bal, "eth_getBalance", address, "latest"); err != nil {
		return nil, fmt.Errorf("eth_getBalance for %s: %w", address.Hex(), err)
	}
	return (*big.Int)(&bal), nil
}

// Close tears down the underlying connection
func (c *Client) Close() {
	c.rpc.Close()
}
