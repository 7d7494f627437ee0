package binding

import (
	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/models"
)

// Tenth revision. Keys are ERC-721 tokens and identity moves from holder
// address to token id; purchases are batched; the publicLockVersion accessor
// makes probing cheap. Holder enumeration goes through getOwnersByPage when
// available, with the ERC-721 enumeration surface as the iterative fallback.

const v10LockABI = `[
	{"type":"function","name":"purchase","inputs":[{"name":"_values","type":"uint256[]"},{"name":"_recipients","type":"address[]"},{"name":"_referrers","type":"address[]"},{"name":"_keyManagers","type":"address[]"},{"name":"_data","type":"bytes[]"}],"outputs":[]},
	{"type":"function","name":"updateKeyPricing","inputs":[{"name":"_keyPrice","type":"uint256"},{"name":"_tokenAddress","type":"address"}],"outputs":[]},
	{"type":"function","name":"withdraw","inputs":[{"name":"_tokenAddress","type":"address"},{"name":"_amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"keyPrice","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"expirationDuration","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"maxNumberOfKeys","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"owner","constant":true,"inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"name","constant":true,"inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"totalSupply","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"publicLockVersion","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"keyExpirationTimestampFor","constant":true,"inputs":[{"name":"_tokenId","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tokenOfOwnerByIndex","constant":true,"inputs":[{"name":"_keyOwner","type":"address"},{"name":"_index","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"tokenByIndex","constant":true,"inputs":[{"name":"_index","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"ownerOf","constant":true,"inputs":[{"name":"_tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getOwnersByPage","constant":true,"inputs":[{"name":"_page","type":"uint256"},{"name":"_pageSize","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"event","name":"Transfer","inputs":[{"name":"_from","type":"address","indexed":true},{"name":"_to","type":"address","indexed":true},{"name":"_tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"PricingChanged","inputs":[{"name":"oldKeyPrice","type":"uint256","indexed":false},{"name":"keyPrice","type":"uint256","indexed":false},{"name":"oldTokenAddress","type":"address","indexed":false},{"name":"tokenAddress","type":"address","indexed":false}]},
	{"type":"event","name":"Withdrawal","inputs":[{"name":"_sender","type":"address","indexed":true},{"name":"_tokenAddress","type":"address","indexed":true},{"name":"_amount","type":"uint256","indexed":false}]}
]`

const v10FactoryABI = `[
	{"type":"function","name":"createLock","inputs":[{"name":"_expirationDuration","type":"uint256"},{"name":"_tokenAddress","type":"address"},{"name":"_keyPrice","type":"uint256"},{"name":"_maxNumberOfKeys","type":"uint256"},{"name":"_lockName","type":"string"}],"outputs":[]},
	{"type":"event","name":"NewLock","inputs":[{"name":"lockOwner","type":"address","indexed":true},{"name":"newLockAddress","type":"address","indexed":true}]}
]`

func newV10() *Binding {
	b := &Binding{
		Version:         10,
		KeyIdentity:     TokenKeyed,
		CodeHash:        common.HexToHash("0xa47cbb8e6b1c1f3c9a027917bd0b978cdd6df3d474e7b1d71fe2ba00de197a50"),
		FactoryCodeHash: common.HexToHash("0x70f1e1b8ccdd9cdcb5c17a0802b1e14aa10de6b1d8d9d860b37e6c02a11ae869"),
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
	Register(newV10())
}
