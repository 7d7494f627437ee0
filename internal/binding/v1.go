package binding

import (
	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/models"
)

// Second revision. Still owner-keyed; the factory gained a currency token
// parameter, purchaseFor dropped its data argument, and locks grew the bulk
// page accessor (known to revert on sparsely packed owner arrays, so the
// iterative strategy remains the safety net).

const v1LockABI = `[
	{"type":"function","name":"purchaseFor","inputs":[{"name":"_recipient","type":"address"}],"outputs":[]},
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
	{"type":"function","name":"getOwnersByPage","constant":true,"inputs":[{"name":"_page","type":"uint256"},{"name":"_pageSize","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"event","name":"Transfer","inputs":[{"name":"_from","type":"address","indexed":true},{"name":"_to","type":"address","indexed":true},{"name":"_tokenId","type":"uint256","indexed":false}]},
	{"type":"event","name":"PriceChanged","inputs":[{"name":"oldKeyPrice","type":"uint256","indexed":false},{"name":"keyPrice","type":"uint256","indexed":false}]},
	{"type":"event","name":"Withdrawal","inputs":[{"name":"_sender","type":"address","indexed":true},{"name":"_amount","type":"uint256","indexed":false}]}
]`

const v1FactoryABI = `[
	{"type":"function","name":"createLock","inputs":[{"name":"_expirationDuration","type":"uint256"},{"name":"_tokenAddress","type":"address"},{"name":"_keyPrice","type":"uint256"},{"name":"_maxNumberOfKeys","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"NewLock","inputs":[{"name":"lockOwner","type":"address","indexed":true},{"name":"newLockAddress","type":"address","indexed":true}]}
]`

func newV1() *Binding {
	b := &Binding{
		Version:         1,
		KeyIdentity:     OwnerKeyed,
		CodeHash:        common.HexToHash("0x23b87b9f39aa5df09571fbd529ed086e5cea9f64a3bf06a5672b44f9359792e7"),
		FactoryCodeHash: common.HexToHash("0x5e16cb1a6f8e4e0b2537fbe0f5a9deb4b0ceb89f99169b0a9b3b6ff309ffd9b2"),
		LockABI:         mustParseABI(v1LockABI),
		FactoryABI:      mustParseABI(v1FactoryABI),
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
	Register(newV1())
}
