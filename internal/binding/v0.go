package binding

import (
	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/models"
)

// First deployed revision. Locks are owner-keyed, holders are packed into
// the owners array, and the bulk page accessor does not exist yet.

const v0LockABI = `[
	{"type":"function","name":"purchaseFor","inputs":[{"name":"_recipient","type":"address"},{"name":"_data","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"updateKeyPrice","inputs":[{"name":"_keyPrice","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdraw","inputs":[],"outputs":[]},
	{"type":"function","name":"keyPrice","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"expirationDuration","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"maxNumberOfKeys","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"owner","constant":true,"inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"outstandingKeys","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"keyExpirationTimestampFor","constant":true,"inputs":[{"name":"_owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"keyDataFor","constant":true,"inputs":[{"name":"_owner","type":"address"}],"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"owners","constant":true,"inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"event","name":"Transfer","inputs":[{"name":"_from","type":"address","indexed":true},{"name":"_to","type":"address","indexed":true},{"name":"_tokenId","type":"uint256","indexed":false}]},
	{"type":"event","name":"PriceChanged","inputs":[{"name":"oldKeyPrice","type":"uint256","indexed":false},{"name":"keyPrice","type":"uint256","indexed":false}]},
	{"type":"event","name":"Withdrawal","inputs":[{"name":"_sender","type":"address","indexed":true},{"name":"_amount","type":"uint256","indexed":false}]}
]`

const v0FactoryABI = `[
	{"type":"function","name":"createLock","inputs":[{"name":"_expirationDuration","type":"uint256"},{"name":"_keyPrice","type":"uint256"},{"name":"_maxNumberOfKeys","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"NewLock","inputs":[{"name":"lockOwner","type":"address","indexed":true},{"name":"newLockAddress","type":"address","indexed":true}]}
]`

func newV0() *Binding {
	b := &Binding{
		Version:         0,
		KeyIdentity:     OwnerKeyed,
		CodeHash:        common.HexToHash("0x8ff963239a0b1f1adbeb8f58c43ee9f10f4cd84833ad94f1bcd6d09e65bb951e"),
		FactoryCodeHash: common.HexToHash("0x2c0e30e37361b07fefcd33293a12cb4e2d68584ab46a0676f2d8a1daa94fa0a5"),
		LockABI:         mustParseABI(v0LockABI),
		FactoryABI:      mustParseABI(v0FactoryABI),
		TxTypes: map[string]models.TransactionType{
			"createLock":     models.TypeLockCreation,
			"purchaseFor":    models.TypeKeyPurchase,
			"withdraw":       models.TypeWithdrawal,
			"updateKeyPrice": models.TypeUpdateKeyPrice,
		},
	}
	b.InputDecoders = map[string]InputDecoder{
		"createLock":     createLockInput(false),
		"purchaseFor":    purchaseForInput,
		"updateKeyPrice": updateKeyPriceInput,
	}
	b.EventDecoders = map[string]EventDecoder{
		"NewLock":      newLockEvent,
		"Transfer":     transferEvent(OwnerKeyed),
		"PriceChanged": priceChangedEvent,
		"Withdrawal":   withdrawalEvent,
	}
	return b
}

func init() {
	Register(newV0())
}
