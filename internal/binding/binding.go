// Package binding bundles the version-specific behavior for each supported
// contract revision: ABI fragments, a transaction-type classifier, input and
// event-log decoder tables, and state readers. Bindings are immutable after
// registration; supporting a new revision is a pure additive Register call.
package binding

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/chain"
	"locksync/internal/models"
	"locksync/internal/unit"
)

// KeyIdentity selects which pair identifies a key for a revision
type KeyIdentity int

const (
	// OwnerKeyed identifies keys by (lock, owner address)
	OwnerKeyed KeyIdentity = iota
	// TokenKeyed identifies keys by (lock, token id)
	TokenKeyed
)

// DecodeContext carries the transaction context a decoder closure needs to
// stamp identity onto the records it produces
type DecodeContext struct {
	TxHash      common.Hash
	Contract    common.Address
	BlockNumber uint64
}

// InputDecoder turns decoded call-data arguments into update records
type InputDecoder func(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord

// EventDecoder turns decoded event-log arguments into update records
type EventDecoder func(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord

// Binding is the behavior bundle for one contract revision
type Binding struct {
	Version     int
	KeyIdentity KeyIdentity

	// Keccak hashes of the deployed bytecode, used for version probing
	CodeHash        common.Hash
	FactoryCodeHash common.Hash

	LockABI    abi.ABI
	FactoryABI abi.ABI

	// Method name -> semantic operation
	TxTypes map[string]models.TransactionType

	// Method/event name -> decoder closure
	InputDecoders map[string]InputDecoder
	EventDecoders map[string]EventDecoder
}

// TransactionType classifies raw call-data into a semantic operation name.
// Call-data whose selector matches no known method is TypeUnknown, which is
// routine, not an error.
func (b *Binding) TransactionType(data []byte) models.TransactionType {
	method := b.MethodByID(data)
	if method == nil {
		return models.TypeUnknown
	}
	if t, ok := b.TxTypes[method.Name]; ok {
		return t
	}
	return models.TypeUnknown
}

// MethodByID finds the method whose 4-byte selector prefixes data, searching
// the lock ABI first and the factory ABI second
func (b *Binding) MethodByID(data []byte) *abi.Method {
	if len(data) < 4 {
		return nil
	}
	if m, err := b.LockABI.MethodById(data[:4]); err == nil {
		return m
	}
	if m, err := b.FactoryABI.MethodById(data[:4]); err == nil {
		return m
	}
	return nil
}

// EventByID finds the event whose signature hash matches the first topic
func (b *Binding) EventByID(topic common.Hash) *abi.Event {
	if e, err := b.LockABI.EventByID(topic); err == nil {
		return e
	}
	if e, err := b.FactoryABI.EventByID(topic); err == nil {
		return e
	}
	return nil
}

// Global revision registry. Registration happens at init time and is
// additive only; resolved bindings are shared instances.
var (
	regMu      sync.RWMutex
	byVersion  = make(map[int]*Binding)
	byCodeHash = make(map[common.Hash]*Binding)
)

// Register adds a revision bundle to the registry. Registering the same
// version twice panics: bindings are never mutated or replaced.
func Register(b *Binding) {
	regMu.Lock()
	defer regMu.Unlock()

	if _, exists := byVersion[b.Version]; exists {
		panic(fmt.Sprintf("binding: version %d registered twice", b.Version))
	}
	byVersion[b.Version] = b
	if b.CodeHash != (common.Hash{}) {
		byCodeHash[b.CodeHash] = b
	}
	if b.FactoryCodeHash != (common.Hash{}) {
		byCodeHash[b.FactoryCodeHash] = b
	}
}

// ByVersion returns the registered bundle for a revision number
func ByVersion(version int) (*Binding, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := byVersion[version]
	return b, ok
}

func byDeployedCode(hash common.Hash) (*Binding, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	b, ok := byCodeHash[hash]
	return b, ok
}

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("binding: bad abi fragment: %v", err))
	}
	return parsed
}

// lockCall packs a method call against the lock ABI, executes it through the
// transport and unpacks the outputs
func (b *Binding) lockCall(ctx context.Context, t chain.Transport, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	m, ok := b.LockABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %s not present in v%d abi", method, b.Version)
	}
	data, err := b.LockABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := t.CallContract(ctx, to, data)
	if err != nil {
		return nil, err
	}
	values, err := m.Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	return values, nil
}

func (b *Binding) callBig(ctx context.Context, t chain.Transport, to common.Address, method string, args ...interface{}) (*big.Int, error) {
	values, err := b.lockCall(ctx, t, to, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, expected uint256", method, values[0])
	}
	return v, nil
}

func (b *Binding) callAddress(ctx context.Context, t chain.Transport, to common.Address, method string, args ...interface{}) (common.Address, error) {
	values, err := b.lockCall(ctx, t, to, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	v, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s returned %T, expected address", method, values[0])
	}
	return v, nil
}

func bigInt(n int) *big.Int { return big.NewInt(int64(n)) }

func bigZero() *big.Int { return new(big.Int) }

func errUnexpectedShape(method string, got interface{}) error {
	return fmt.Errorf("%s returned unexpected shape %T", method, got)
}

// normalizeExpiration maps the max-uint256 sentinel to KeyNeverExpires and
// everything else to its uint64 value
func normalizeExpiration(raw *big.Int) uint64 {
	if unit.IsUnlimited(raw) {
		return models.KeyNeverExpires
	}
	if !raw.IsUint64() {
		return models.KeyNeverExpires
	}
	return raw.Uint64()
}

// normalizeMaxKeys maps the max-uint256 sentinel to UnlimitedKeys (-1)
func normalizeMaxKeys(raw *big.Int) int64 {
	if unit.IsUnlimited(raw) {
		return models.UnlimitedKeys
	}
	return raw.Int64()
}
