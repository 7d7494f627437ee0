package binding

import (
	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/models"
)

// Eleventh revision. Wire-compatible with v10 for everything this layer
// touches; only the deployed bytecode and the reported version differ.

func newV11() *Binding {
	b := &Binding{
		Version:         11,
		KeyIdentity:     TokenKeyed,
		CodeHash:        common.HexToHash("0x417dc7bf2b8bd18d8d39b4c9b6c50b70b1d38ac5f2f0cf510b90bd5e61c062cf"),
		FactoryCodeHash: common.HexToHash("0x9e250c83c25cf9fe4c02ab9cfd2fa0e31e1b8373cdd7905d27b9de42b2b01227"),
		LockABI:         mustParseABI(v10LockABI),
		FactoryABI:      mustParseABI(v10FactoryABI),
		TxTypes: map[string]models.TransactionType{
			"createLock":       models.TypeLockCreation,
			"purchase":         models.TypeKeyPurchase,
			"withdraw":         models.TypeWithdrawal,
			"updateKeyPricing": models.TypeUpdateKeyPrice,
		},
	}
	b.InputDecoders = map[string]InputDecoder{
		"createLock":       createLockInput(true),
		"purchase":         purchaseBatchInput,
		"updateKeyPricing": updateKeyPriceInput,
	}
	b.EventDecoders = map[string]EventDecoder{
		"NewLock":        newLockEvent,
		"Transfer":       transferEvent(TokenKeyed),
		"PricingChanged": priceChangedEvent,
		"Withdrawal":     withdrawalEvent,
	}
	return b
}

func init() {
	Register(newV11())
}
