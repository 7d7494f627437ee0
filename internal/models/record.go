package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names a bus topic
type EventKind string

const (
	LockUpdated        EventKind = "lock.updated"
	KeyUpdated         EventKind = "key.updated"
	KeySaved           EventKind = "key.saved"
	TransactionUpdated EventKind = "transaction.updated"
	KeysPage           EventKind = "keys.page"
)

// LockPatch is a partial lock update. Nil fields are "no change"; every
// patch carries the lock address (or the originating transaction hash when
// the address is not yet knowable, i.e. a pending lock creation) plus the
// block number it was observed at, so a materialized view can merge it
// idempotently and in block order.
type LockPatch struct {
	Address     common.Address
	Transaction common.Hash
	AsOfBlock   uint64

	Owner              *common.Address
	Name               *string
	KeyPrice           *string
	ExpirationDuration *uint64
	MaxNumberOfKeys    *int64
	OutstandingKeys    *uint64
	Balance            *string
}

// KeyPatch is a partial key update carrying the full identity pair
type KeyPatch struct {
	Lock      common.Address
	Owner     common.Address
	TokenID   *big.Int
	AsOfBlock uint64

	Expiration *uint64
	Data       []byte
}

// ID renders the identity the patch resolves to
func (p KeyPatch) ID() string {
	return Key{Lock: p.Lock, Owner: p.Owner, TokenID: p.TokenID}.ID()
}

// UpdateRecord is the canonical unit published on the bus by decoders and
// state readers. Exactly one of Lock or Key is set, according to Kind.
type UpdateRecord struct {
	Kind      EventKind
	TxHash    common.Hash
	AsOfBlock uint64

	Lock *LockPatch
	Key  *KeyPatch
}

// Helpers for building pointer-fielded patches

func StringPtr(s string) *string                  { return &s }
func Uint64Ptr(u uint64) *uint64                  { return &u }
func Int64Ptr(i int64) *int64                     { return &i }
func AddressPtr(a common.Address) *common.Address { return &a }
