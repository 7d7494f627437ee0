// Package service is the façade tying the transport, bindings, tracker and
// enumerator together. Read operations return the fresh state and publish it
// on the bus; tracking is fire-and-forget with progress on the bus only.
package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/binding"
	"locksync/internal/bus"
	"locksync/internal/chain"
	"locksync/internal/models"
	"locksync/internal/owners"
	"locksync/internal/tracker"
)

type Service struct {
	transport chain.Transport
	registry  *binding.Registry
	bus       *bus.Bus
	tracker   *tracker.Tracker
	owners    *owners.Enumerator
}

func New(transport chain.Transport, registry *binding.Registry, b *bus.Bus, t *tracker.Tracker, e *owners.Enumerator) *Service {
	return &Service{
		transport: transport,
		registry:  registry,
		bus:       b,
		tracker:   t,
		owners:    e,
	}
}

// Bus exposes the event bus for subscribers
func (s *Service) Bus() *bus.Bus {
	return s.bus
}

// TrackTransaction starts lifecycle tracking for a hash. Defaults may carry
// the call-data the caller just submitted; nil is fine for foreign hashes.
func (s *Service) TrackTransaction(ctx context.Context, hash common.Hash, defaults *tracker.Defaults) {
	s.tracker.Track(ctx, hash, defaults)
}

// UntrackTransaction stops tracking a hash
func (s *Service) UntrackTransaction(hash common.Hash) {
	s.tracker.Untrack(hash)
}

// ResolveLock reads the full current state of a lock, publishes it as a
// lock.updated record and returns it
func (s *Service) ResolveLock(ctx context.Context, lock common.Address) (models.Lock, error) {
	b, err := s.registry.Resolve(ctx, lock)
	if err != nil {
		return models.Lock{}, fmt.Errorf("failed to resolve lock %s: %w", lock.Hex(), err)
	}

	head, err := s.transport.BlockNumber(ctx)
	if err != nil {
		return models.Lock{}, fmt.Errorf("failed to read head block: %w", err)
	}

	patch, err := b.ReadLock(ctx, s.transport, lock, head)
	if err != nil {
		return models.Lock{}, fmt.Errorf("failed to read lock %s: %w", lock.Hex(), err)
	}

	s.bus.PublishRecord(models.UpdateRecord{
		Kind:      models.LockUpdated,
		AsOfBlock: head,
		Lock:      patch,
	})

	out := models.Lock{Address: lock, AsOfBlock: head, KeyPrice: "0", Balance: "0"}
	if patch.Owner != nil {
		out.Owner = *patch.Owner
	}
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.KeyPrice != nil {
		out.KeyPrice = *patch.KeyPrice
	}
	if patch.ExpirationDuration != nil {
		out.ExpirationDuration = *patch.ExpirationDuration
	}
	if patch.MaxNumberOfKeys != nil {
		out.MaxNumberOfKeys = *patch.MaxNumberOfKeys
	}
	if patch.OutstandingKeys != nil {
		out.OutstandingKeys = *patch.OutstandingKeys
	}
	if patch.Balance != nil {
		out.Balance = *patch.Balance
	}
	return out, nil
}

// GetKeyByLockForOwner reads the key an owner holds on a lock, publishes it
// as key.updated and returns it. A holder without an active key returns a
// key with expiration 0.
func (s *Service) GetKeyByLockForOwner(ctx context.Context, lock, owner common.Address) (models.Key, error) {
	b, err := s.registry.Resolve(ctx, lock)
	if err != nil {
		return models.Key{}, fmt.Errorf("failed to resolve lock %s: %w", lock.Hex(), err)
	}

	head, err := s.transport.BlockNumber(ctx)
	if err != nil {
		return models.Key{}, fmt.Errorf("failed to read head block: %w", err)
	}

	key := b.ReadKey(ctx, s.transport, lock, owner, head)

	s.bus.PublishRecord(models.UpdateRecord{
		Kind:      models.KeyUpdated,
		AsOfBlock: head,
		Key: &models.KeyPatch{
			Lock:       key.Lock,
			Owner:      key.Owner,
			TokenID:    key.TokenID,
			AsOfBlock:  head,
			Expiration: models.Uint64Ptr(key.Expiration),
			Data:       key.Data,
		},
	})
	return key, nil
}

// PageKeyOwners enumerates one page of a lock's key holders. Results stream
// on the returned channel in index order; key.updated and keys.page events
// follow on the bus.
func (s *Service) PageKeyOwners(ctx context.Context, lock common.Address, page, pageSize int) (<-chan owners.Result, error) {
	return s.owners.Page(ctx, lock, page, pageSize)
}

// LockVersion resolves which contract revision backs an address
func (s *Service) LockVersion(ctx context.Context, lock common.Address) (int, error) {
	b, err := s.registry.Resolve(ctx, lock)
	if err != nil {
		return 0, err
	}
	return b.Version, nil
}

// Stop cancels every tracked transaction worker and waits for them
func (s *Service) Stop() {
	s.tracker.Stop()
}
