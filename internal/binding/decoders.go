package binding

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/models"
	"locksync/internal/unit"
)

// Decoder closures shared between revisions. Every closure is a pure
// function of (context, decoded args); a shape that does not match yields
// zero records and the caller reports the mismatch.

func argAddress(args map[string]interface{}, name string) (common.Address, bool) {
	v, ok := args[name].(common.Address)
	return v, ok
}

func argBig(args map[string]interface{}, name string) (*big.Int, bool) {
	v, ok := args[name].(*big.Int)
	return v, ok
}

func argString(args map[string]interface{}, name string) (string, bool) {
	v, ok := args[name].(string)
	return v, ok
}

func argAddressSlice(args map[string]interface{}, name string) ([]common.Address, bool) {
	v, ok := args[name].([]common.Address)
	return v, ok
}

// createLockInput decodes a pending lock creation. The new lock's address is
// not part of the call-data, so the record is keyed by transaction hash
// alone; the NewLock event supplies the authoritative address once mined.
func createLockInput(withName bool) InputDecoder {
	return func(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord {
		duration, ok := argBig(args, "_expirationDuration")
		if !ok {
			return nil
		}
		price, ok := argBig(args, "_keyPrice")
		if !ok {
			return nil
		}
		maxKeys, ok := argBig(args, "_maxNumberOfKeys")
		if !ok {
			return nil
		}

		patch := &models.LockPatch{
			Transaction:        ctx.TxHash,
			AsOfBlock:          ctx.BlockNumber,
			ExpirationDuration: models.Uint64Ptr(duration.Uint64()),
			KeyPrice:           models.StringPtr(unit.ToDisplay(price, unit.EtherDecimals)),
			MaxNumberOfKeys:    models.Int64Ptr(normalizeMaxKeys(maxKeys)),
			OutstandingKeys:    models.Uint64Ptr(0),
			Balance:            models.StringPtr("0"),
		}
		if withName {
			if name, ok := argString(args, "_lockName"); ok {
				patch.Name = models.StringPtr(name)
			}
		}

		return []models.UpdateRecord{{
			Kind:      models.LockUpdated,
			TxHash:    ctx.TxHash,
			AsOfBlock: ctx.BlockNumber,
			Lock:      patch,
		}}
	}
}

// purchaseForInput decodes the single-recipient purchase of old revisions
func purchaseForInput(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord {
	recipient, ok := argAddress(args, "_recipient")
	if !ok {
		return nil
	}
	return []models.UpdateRecord{{
		Kind:      models.KeySaved,
		TxHash:    ctx.TxHash,
		AsOfBlock: ctx.BlockNumber,
		Key: &models.KeyPatch{
			Lock:      ctx.Contract,
			Owner:     recipient,
			AsOfBlock: ctx.BlockNumber,
		},
	}}
}

// purchaseBatchInput decodes the multi-recipient purchase of new revisions.
// Token ids are assigned on chain and are not part of the call-data, so the
// records are owner-addressed; the Transfer logs carry the token ids.
func purchaseBatchInput(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord {
	recipients, ok := argAddressSlice(args, "_recipients")
	if !ok {
		return nil
	}
	records := make([]models.UpdateRecord, 0, len(recipients))
	for _, recipient := range recipients {
		records = append(records, models.UpdateRecord{
			Kind:      models.KeySaved,
			TxHash:    ctx.TxHash,
			AsOfBlock: ctx.BlockNumber,
			Key: &models.KeyPatch{
				Lock:      ctx.Contract,
				Owner:     recipient,
				AsOfBlock: ctx.BlockNumber,
			},
		})
	}
	return records
}

// updateKeyPriceInput covers both updateKeyPrice and updateKeyPricing
func updateKeyPriceInput(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord {
	price, ok := argBig(args, "_keyPrice")
	if !ok {
		return nil
	}
	return []models.UpdateRecord{{
		Kind:      models.LockUpdated,
		TxHash:    ctx.TxHash,
		AsOfBlock: ctx.BlockNumber,
		Lock: &models.LockPatch{
			Address:     ctx.Contract,
			Transaction: ctx.TxHash,
			AsOfBlock:   ctx.BlockNumber,
			KeyPrice:    models.StringPtr(unit.ToDisplay(price, unit.EtherDecimals)),
		},
	}}
}

// newLockEvent decodes the factory's lock creation event
func newLockEvent(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord {
	lockAddress, ok := argAddress(args, "newLockAddress")
	if !ok {
		return nil
	}
	patch := &models.LockPatch{
		Address:     lockAddress,
		Transaction: ctx.TxHash,
		AsOfBlock:   ctx.BlockNumber,
	}
	if owner, ok := argAddress(args, "lockOwner"); ok {
		patch.Owner = models.AddressPtr(owner)
	}
	return []models.UpdateRecord{{
		Kind:      models.LockUpdated,
		TxHash:    ctx.TxHash,
		AsOfBlock: ctx.BlockNumber,
		Lock:      patch,
	}}
}

// transferEvent decodes a key transfer/purchase. Token-keyed revisions carry
// the token id in the log and it becomes part of the key identity.
func transferEvent(identity KeyIdentity) EventDecoder {
	return func(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord {
		to, ok := argAddress(args, "_to")
		if !ok {
			return nil
		}
		patch := &models.KeyPatch{
			Lock:      ctx.Contract,
			Owner:     to,
			AsOfBlock: ctx.BlockNumber,
		}
		if identity == TokenKeyed {
			tokenID, ok := argBig(args, "_tokenId")
			if !ok {
				return nil
			}
			patch.TokenID = tokenID
		}
		return []models.UpdateRecord{{
			Kind:      models.KeySaved,
			TxHash:    ctx.TxHash,
			AsOfBlock: ctx.BlockNumber,
			Key:       patch,
		}}
	}
}

// priceChangedEvent decodes a key price change
func priceChangedEvent(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord {
	price, ok := argBig(args, "keyPrice")
	if !ok {
		return nil
	}
	return []models.UpdateRecord{{
		Kind:      models.LockUpdated,
		TxHash:    ctx.TxHash,
		AsOfBlock: ctx.BlockNumber,
		Lock: &models.LockPatch{
			Address:     ctx.Contract,
			Transaction: ctx.TxHash,
			AsOfBlock:   ctx.BlockNumber,
			KeyPrice:    models.StringPtr(unit.ToDisplay(price, unit.EtherDecimals)),
		},
	}}
}

// withdrawalEvent marks the lock stale as of the withdrawal block. The new
// balance is not in the log; consumers re-read it on demand.
func withdrawalEvent(ctx DecodeContext, args map[string]interface{}) []models.UpdateRecord {
	return []models.UpdateRecord{{
		Kind:      models.LockUpdated,
		TxHash:    ctx.TxHash,
		AsOfBlock: ctx.BlockNumber,
		Lock: &models.LockPatch{
			Address:     ctx.Contract,
			Transaction: ctx.TxHash,
			AsOfBlock:   ctx.BlockNumber,
		},
	}}
}
