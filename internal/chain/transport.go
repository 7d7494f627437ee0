// Package chain defines the five-operation ledger transport the sync layer
// is written against, plus a JSON-RPC implementation of it. Anything able to
// answer these five reads is a valid backend; nothing here assumes HTTP vs
// IPC vs WebSocket framing.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Transaction is the node's view of a transaction by hash
type Transaction struct {
	Hash        common.Hash     `json:"hash"`
	To          *common.Address `json:"to"`
	Input       hexutil.Bytes   `json:"input"`
	BlockNumber *hexutil.Big    `json:"blockNumber"` // nil while in the pending pool
}

// Mined reports whether the transaction has been included in a block
func (t *Transaction) Mined() bool {
	return t != nil && t.BlockNumber != nil
}

// Receipt is the node's post-execution record for a mined transaction
type Receipt struct {
	Status      hexutil.Uint64 `json:"status"` // 1 success, 0 revert
	BlockNumber hexutil.Big    `json:"blockNumber"`
	Logs        []Log          `json:"logs"`
}

// Reverted reports whether execution failed on chain
func (r *Receipt) Reverted() bool {
	return r != nil && r.Status == 0
}

// Log is one event log entry from a receipt
type Log struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
}

// Transport is the read surface this layer needs from a ledger node.
// TransactionByHash and TransactionReceipt return (nil, nil) when the node
// does not know the hash; absence is data, not an error.
type Transport interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	CodeAt(ctx context.Context, address common.Address) ([]byte, error)
}

// BalanceReader is an optional extension for transports that can also read
// native-denomination account balances. State readers probe for it and treat
// its absence as a zero balance.
type BalanceReader interface {
	BalanceAt(ctx context.Context, address common.Address) (*big.Int, error)
}
