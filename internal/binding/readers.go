package binding

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/chain"
	"locksync/internal/models"
	"locksync/internal/unit"
)

// ReadLock fetches the current lock state through the transport and returns
// it as a single patch stamped with the head block. The required attributes
// (price, duration, capacity) surface read errors; everything else degrades
// to absent.
func (b *Binding) ReadLock(ctx context.Context, t chain.Transport, lock common.Address, head uint64) (*models.LockPatch, error) {
	patch := &models.LockPatch{Address: lock, AsOfBlock: head}

	price, err := b.callBig(ctx, t, lock, "keyPrice")
	if err != nil {
		return nil, err
	}
	patch.KeyPrice = models.StringPtr(unit.ToDisplay(price, unit.EtherDecimals))

	duration, err := b.callBig(ctx, t, lock, "expirationDuration")
	if err != nil {
		return nil, err
	}
	patch.ExpirationDuration = models.Uint64Ptr(duration.Uint64())

	maxKeys, err := b.callBig(ctx, t, lock, "maxNumberOfKeys")
	if err != nil {
		return nil, err
	}
	patch.MaxNumberOfKeys = models.Int64Ptr(normalizeMaxKeys(maxKeys))

	if owner, err := b.callAddress(ctx, t, lock, "owner"); err == nil {
		patch.Owner = models.AddressPtr(owner)
	} else {
		slog.Debug("owner read failed", "lock", lock.Hex(), "version", b.Version, "error", err)
	}

	// Old revisions track key count directly, new ones expose an ERC-721
	// total supply
	countMethod := "outstandingKeys"
	if _, ok := b.LockABI.Methods["totalSupply"]; ok {
		countMethod = "totalSupply"
	}
	if count, err := b.callBig(ctx, t, lock, countMethod); err == nil {
		patch.OutstandingKeys = models.Uint64Ptr(count.Uint64())
	} else {
		slog.Debug("key count read failed", "lock", lock.Hex(), "method", countMethod, "error", err)
	}

	if _, ok := b.LockABI.Methods["name"]; ok {
		if values, err := b.lockCall(ctx, t, lock, "name"); err == nil {
			if name, ok := values[0].(string); ok {
				patch.Name = models.StringPtr(name)
			}
		}
	}

	if reader, ok := t.(chain.BalanceReader); ok {
		if bal, err := reader.BalanceAt(ctx, lock); err == nil {
			patch.Balance = models.StringPtr(unit.ToDisplay(bal, unit.EtherDecimals))
		} else {
			slog.Debug("balance read failed", "lock", lock.Hex(), "error", err)
		}
	}

	return patch, nil
}

// ReadKey fetches the key held by owner on a lock. A failed lookup is valid
// data, not an error: a holder that never purchased, or whose key was
// cancelled, reads as expiration 0.
func (b *Binding) ReadKey(ctx context.Context, t chain.Transport, lock, owner common.Address, head uint64) models.Key {
	key := models.Key{Lock: lock, Owner: owner, AsOfBlock: head}

	switch b.KeyIdentity {
	case TokenKeyed:
		tokenID, err := b.callBig(ctx, t, lock, "tokenOfOwnerByIndex", owner, bigZero())
		if err != nil {
			return key
		}
		key.TokenID = tokenID
		if exp, err := b.callBig(ctx, t, lock, "keyExpirationTimestampFor", tokenID); err == nil {
			key.Expiration = normalizeExpiration(exp)
		}
	default:
		exp, err := b.callBig(ctx, t, lock, "keyExpirationTimestampFor", owner)
		if err != nil {
			return key
		}
		key.Expiration = normalizeExpiration(exp)

		if _, ok := b.LockABI.Methods["keyDataFor"]; ok {
			if values, err := b.lockCall(ctx, t, lock, "keyDataFor", owner); err == nil {
				if data, ok := values[0].([]byte); ok {
					key.Data = data
				}
			}
		}
	}

	return key
}

// OwnersPage is the bulk enumeration strategy: one call returning up to
// pageSize holder addresses. Reverts on revisions that do not support it;
// the caller falls back to OwnerAt.
func (b *Binding) OwnersPage(ctx context.Context, t chain.Transport, lock common.Address, page, pageSize int) ([]common.Address, error) {
	values, err := b.lockCall(ctx, t, lock, "getOwnersByPage", bigInt(page), bigInt(pageSize))
	if err != nil {
		return nil, err
	}
	owners, ok := values[0].([]common.Address)
	if !ok {
		return nil, errUnexpectedShape("getOwnersByPage", values[0])
	}
	return owners, nil
}

// OwnerAt is the iterative enumeration strategy: resolve the holder at one
// absolute index. Failure means "no holder at this index", which old
// contracts produce after transfers leave gaps.
func (b *Binding) OwnerAt(ctx context.Context, t chain.Transport, lock common.Address, index int) (common.Address, error) {
	if _, ok := b.LockABI.Methods["owners"]; ok {
		return b.callAddress(ctx, t, lock, "owners", bigInt(index))
	}
	// Token-keyed revisions enumerate through the ERC-721 surface
	tokenID, err := b.callBig(ctx, t, lock, "tokenByIndex", bigInt(index))
	if err != nil {
		return common.Address{}, err
	}
	return b.callAddress(ctx, t, lock, "ownerOf", tokenID)
}
