// Package view materializes bus events into queryable lock, key and
// transaction state. Patches merge idempotently: replaying an event is a
// no-op, and a patch older than what the view already holds is skipped.
package view

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/bus"
	"locksync/internal/metrics"
	"locksync/internal/models"
	"locksync/internal/storage"
)

// View is the in-memory materialization of everything published on the bus
type View struct {
	mu sync.RWMutex

	locks map[common.Address]*models.Lock
	// Lock creations are tracked by transaction hash until the NewLock
	// event supplies the address
	pendingLocks map[common.Hash]*models.Lock
	keys         map[string]*models.Key
	transactions map[common.Hash]*models.Transaction

	// Optional write-through sink
	repo storage.Repository
	ctx  context.Context
}

// New creates a view subscribed to the bus. A nil repository keeps the view
// memory-only.
func New(ctx context.Context, b *bus.Bus, repo storage.Repository) (*View, error) {
	v := &View{
		locks:        make(map[common.Address]*models.Lock),
		pendingLocks: make(map[common.Hash]*models.Lock),
		keys:         make(map[string]*models.Key),
		transactions: make(map[common.Hash]*models.Transaction),
		repo:         repo,
		ctx:          ctx,
	}

	if err := b.SubscribeLockUpdated(v.applyLockPatch); err != nil {
		return nil, err
	}
	if err := b.SubscribeKeyUpdated(v.applyKeyPatch); err != nil {
		return nil, err
	}
	if err := b.SubscribeKeySaved(v.applyKeyPatch); err != nil {
		return nil, err
	}
	if err := b.SubscribeTransactionUpdated(v.applyTransaction); err != nil {
		return nil, err
	}
	return v, nil
}

// Batch size for paging repository reads during rehydration
const rehydrateBatch = 500

// Rehydrate loads persisted state into the view so rows written by a
// previous run are queryable before any new event arrives. A memory-only
// view is a no-op.
func (v *View) Rehydrate(ctx context.Context) error {
	if v.repo == nil {
		return nil
	}

	var lockCount, keyCount, txCount int
	for offset := 0; ; offset += rehydrateBatch {
		locks, err := v.repo.ListLocks(ctx, rehydrateBatch, offset)
		if err != nil {
			return fmt.Errorf("failed to load locks: %w", err)
		}
		for _, lock := range locks {
			row := *lock
			v.mu.Lock()
			v.locks[row.Address] = &row
			v.mu.Unlock()
			lockCount++

			n, err := v.rehydrateKeys(ctx, row.Address)
			if err != nil {
				return err
			}
			keyCount += n
		}
		if len(locks) < rehydrateBatch {
			break
		}
	}

	for offset := 0; ; offset += rehydrateBatch {
		txs, err := v.repo.ListTransactions(ctx, rehydrateBatch, offset)
		if err != nil {
			return fmt.Errorf("failed to load transactions: %w", err)
		}
		for _, tx := range txs {
			row := *tx
			v.mu.Lock()
			v.transactions[row.Hash] = &row
			v.mu.Unlock()
			txCount++
		}
		if len(txs) < rehydrateBatch {
			break
		}
	}

	metrics.ViewLocks.Set(float64(v.LockCount()))
	metrics.ViewKeys.Set(float64(v.KeyCount()))
	slog.Info("View rehydrated",
		"locks", lockCount,
		"keys", keyCount,
		"transactions", txCount,
	)
	return nil
}

func (v *View) rehydrateKeys(ctx context.Context, lock common.Address) (int, error) {
	count := 0
	for offset := 0; ; offset += rehydrateBatch {
		keys, err := v.repo.ListKeys(ctx, lock.Hex(), rehydrateBatch, offset)
		if err != nil {
			return count, fmt.Errorf("failed to load keys for %s: %w", lock.Hex(), err)
		}
		for _, key := range keys {
			row := *key
			v.mu.Lock()
			v.keys[row.ID()] = &row
			v.mu.Unlock()
			count++
		}
		if len(keys) < rehydrateBatch {
			return count, nil
		}
	}
}

func (v *View) applyLockPatch(p models.LockPatch) {
	v.mu.Lock()

	lock := v.resolveLock(p)
	if lock == nil {
		v.mu.Unlock()
		return
	}

	mergeLock(lock, p)
	snapshot := *lock
	v.mu.Unlock()

	metrics.ViewLocks.Set(float64(v.LockCount()))
	v.persistLock(&snapshot)
}

// resolveLock finds or creates the row a patch applies to, promoting a
// pending creation once the address is known. Returns nil when the patch is
// older than the row.
func (v *View) resolveLock(p models.LockPatch) *models.Lock {
	if p.Address == (common.Address{}) {
		if p.Transaction == (common.Hash{}) {
			return nil
		}
		lock, ok := v.pendingLocks[p.Transaction]
		if !ok {
			lock = &models.Lock{Transaction: p.Transaction, KeyPrice: "0", Balance: "0"}
			v.pendingLocks[p.Transaction] = lock
		}
		return lock
	}

	lock, ok := v.locks[p.Address]
	if !ok {
		if p.Transaction != (common.Hash{}) {
			if pending, found := v.pendingLocks[p.Transaction]; found {
				delete(v.pendingLocks, p.Transaction)
				pending.Address = p.Address
				v.locks[p.Address] = pending
				return pending
			}
		}
		lock = &models.Lock{Address: p.Address, KeyPrice: "0", Balance: "0"}
		v.locks[p.Address] = lock
		return lock
	}

	// The address already resolved, so any creation still tracked by hash
	// is redundant
	if p.Transaction != (common.Hash{}) {
		delete(v.pendingLocks, p.Transaction)
	}

	if p.AsOfBlock < lock.AsOfBlock {
		metrics.StaleRecordsSkipped.Inc()
		slog.Debug("Skipping stale lock patch",
			"lock", p.Address.Hex(),
			"patch_block", p.AsOfBlock,
			"view_block", lock.AsOfBlock,
		)
		return nil
	}
	return lock
}

func mergeLock(lock *models.Lock, p models.LockPatch) {
	if p.AsOfBlock > lock.AsOfBlock {
		lock.AsOfBlock = p.AsOfBlock
	}
	if p.Transaction != (common.Hash{}) {
		lock.Transaction = p.Transaction
	}
	if p.Owner != nil {
		lock.Owner = *p.Owner
	}
	if p.Name != nil {
		lock.Name = *p.Name
	}
	if p.KeyPrice != nil {
		lock.KeyPrice = *p.KeyPrice
	}
	if p.ExpirationDuration != nil {
		lock.ExpirationDuration = *p.ExpirationDuration
	}
	if p.MaxNumberOfKeys != nil {
		lock.MaxNumberOfKeys = *p.MaxNumberOfKeys
	}
	if p.OutstandingKeys != nil {
		lock.OutstandingKeys = *p.OutstandingKeys
	}
	if p.Balance != nil {
		lock.Balance = *p.Balance
	}
}

func (v *View) applyKeyPatch(p models.KeyPatch) {
	id := p.ID()

	v.mu.Lock()
	key, ok := v.keys[id]
	if !ok {
		key = &models.Key{Lock: p.Lock, Owner: p.Owner, TokenID: p.TokenID}
		v.keys[id] = key
	} else if p.AsOfBlock < key.AsOfBlock {
		metrics.StaleRecordsSkipped.Inc()
		v.mu.Unlock()
		return
	}

	if p.AsOfBlock > key.AsOfBlock {
		key.AsOfBlock = p.AsOfBlock
	}
	// Token-keyed identities keep their ID across transfers, so the owner
	// moves with the patch
	if p.Owner != (common.Address{}) {
		key.Owner = p.Owner
	}
	if p.TokenID != nil {
		key.TokenID = p.TokenID
	}
	if p.Expiration != nil {
		key.Expiration = *p.Expiration
	}
	if p.Data != nil {
		key.Data = p.Data
	}
	snapshot := *key
	v.mu.Unlock()

	metrics.ViewKeys.Set(float64(v.KeyCount()))
	v.persistKey(&snapshot)
}

func (v *View) applyTransaction(tx models.Transaction) {
	v.mu.Lock()
	snapshot := tx
	v.transactions[tx.Hash] = &snapshot
	v.mu.Unlock()

	if v.repo != nil {
		if err := v.repo.SaveTransaction(v.ctx, &snapshot); err != nil {
			slog.Error("Failed to persist transaction",
				"tx_hash", tx.Hash.Hex(),
				"error", err,
			)
		}
	}
}

func (v *View) persistLock(lock *models.Lock) {
	if v.repo == nil || lock.Address == (common.Address{}) {
		return
	}
	if err := v.repo.SaveLock(v.ctx, lock); err != nil {
		slog.Error("Failed to persist lock",
			"lock", lock.Address.Hex(),
			"error", err,
		)
	}
}

func (v *View) persistKey(key *models.Key) {
	if v.repo == nil {
		return
	}
	if err := v.repo.SaveKey(v.ctx, key); err != nil {
		slog.Error("Failed to persist key",
			"key_id", key.ID(),
			"error", err,
		)
	}
}

// Lock returns the materialized lock at an address
func (v *View) Lock(address common.Address) (models.Lock, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	lock, ok := v.locks[address]
	if !ok {
		return models.Lock{}, false
	}
	return *lock, true
}

// PendingLock returns a lock creation not yet resolved to an address
func (v *View) PendingLock(txHash common.Hash) (models.Lock, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	lock, ok := v.pendingLocks[txHash]
	if !ok {
		return models.Lock{}, false
	}
	return *lock, true
}

// Locks returns every materialized lock, ordered by address
func (v *View) Locks() []models.Lock {
	v.mu.RLock()
	out := make([]models.Lock, 0, len(v.locks))
	for _, lock := range v.locks {
		out = append(out, *lock)
	}
	v.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out
}

// Key returns the materialized key with the given identity
func (v *View) Key(id string) (models.Key, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok := v.keys[id]
	if !ok {
		return models.Key{}, false
	}
	return *key, true
}

// Keys returns the materialized keys of one lock, ordered by identity
func (v *View) Keys(lock common.Address) []models.Key {
	v.mu.RLock()
	var out []models.Key
	for _, key := range v.keys {
		if key.Lock == lock {
			out = append(out, *key)
		}
	}
	v.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Transaction returns the latest lifecycle snapshot for a hash
func (v *View) Transaction(hash common.Hash) (models.Transaction, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	tx, ok := v.transactions[hash]
	if !ok {
		return models.Transaction{}, false
	}
	return *tx, true
}

// LockCount reports how many locks the view holds
func (v *View) LockCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.locks)
}

// KeyCount reports how many keys the view holds
func (v *View) KeyCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}
