package models

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionStatus is the lifecycle state of a tracked transaction
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusSubmitted TransactionStatus = "submitted"
	StatusMined     TransactionStatus = "mined"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusFailed    TransactionStatus = "failed"
)

// Terminal reports whether no further status can follow
func (s TransactionStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// TransactionType is the semantic operation resolved from call-data
type TransactionType string

const (
	TypeLockCreation   TransactionType = "LOCK_CREATION"
	TypeKeyPurchase    TransactionType = "KEY_PURCHASE"
	TypeWithdrawal     TransactionType = "WITHDRAWAL"
	TypeUpdateKeyPrice TransactionType = "UPDATE_KEY_PRICE"
	TypeUnknown        TransactionType = "UNKNOWN"
)

// FailReason distinguishes why a transaction reached StatusFailed
type FailReason string

const (
	// FailReverted means the receipt reported an on-chain revert
	FailReverted FailReason = "reverted"
	// FailNotObserved means the transaction never landed in a block within
	// the polling budget
	FailNotObserved FailReason = "not_observed"
	// FailUnknownVersion means the destination contract matched no
	// registered ABI revision
	FailUnknownVersion FailReason = "unknown_version"
)

// KeyNeverExpires is the normalized expiration for keys whose on-chain
// expiration is the max-uint256 sentinel
const KeyNeverExpires = uint64(math.MaxUint64)

// UnlimitedKeys is the normalized value for a lock whose maxNumberOfKeys is
// the max-uint256 sentinel
const UnlimitedKeys = int64(-1)

// Lock is an on-chain membership lock materialized from update records
type Lock struct {
	Address            common.Address `json:"address"`
	Owner              common.Address `json:"owner"`
	Name               string         `json:"name,omitempty"`
	KeyPrice           string         `json:"key_price"` // display units
	ExpirationDuration uint64         `json:"expiration_duration"`
	MaxNumberOfKeys    int64          `json:"max_number_of_keys"` // -1 = unlimited
	OutstandingKeys    uint64         `json:"outstanding_keys"`
	Balance            string         `json:"balance"` // display units
	AsOfBlock          uint64         `json:"as_of_block"`
	Transaction        common.Hash    `json:"transaction,omitempty"`
}

// Key is a membership token tied to a lock. Identity is owner-keyed on old
// contract revisions and token-id-keyed on new ones; TokenID is nil for the
// former.
type Key struct {
	Lock       common.Address `json:"lock"`
	Owner      common.Address `json:"owner"`
	TokenID    *big.Int       `json:"token_id,omitempty"`
	Expiration uint64         `json:"expiration"` // 0 = no active key
	Data       []byte         `json:"data,omitempty"`
	AsOfBlock  uint64         `json:"as_of_block"`
}

// ID renders the canonical identity pair for the key
func (k Key) ID() string {
	if k.TokenID != nil {
		return fmt.Sprintf("%s-token-%s", k.Lock.Hex(), k.TokenID.String())
	}
	return fmt.Sprintf("%s-%s", k.Lock.Hex(), k.Owner.Hex())
}

// Transaction is the tracked view of a submitted transaction
type Transaction struct {
	Hash          common.Hash       `json:"hash"`
	To            common.Address    `json:"to"`
	Status        TransactionStatus `json:"status"`
	Type          TransactionType   `json:"type"`
	Confirmations uint64            `json:"confirmations"`
	BlockNumber   uint64            `json:"block_number,omitempty"` // 0 while pending
	FailReason    FailReason        `json:"fail_reason,omitempty"`

	// Identities affected by this transaction, filled in as call-data and
	// logs are decoded
	Lock  common.Address `json:"lock,omitempty"`
	KeyID string         `json:"key_id,omitempty"`
}

// KeyOwnerPage is one enumerated page of key holders for a lock
type KeyOwnerPage struct {
	Lock     common.Address `json:"lock"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Keys     []Key          `json:"keys"`
}
