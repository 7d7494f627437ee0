// Package owners enumerates the key holders of a lock page by page. It
// prefers the contract's bulk page accessor and falls back to per-index
// lookups on revisions that revert the bulk call.
package owners

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/binding"
	"locksync/internal/bus"
	"locksync/internal/chain"
	"locksync/internal/metrics"
	"locksync/internal/models"
	"locksync/internal/retry"
)

const (
	strategyBulk      = "bulk"
	strategyIterative = "iterative"
)

// Result is one slot of an enumerated page, delivered in ascending index
// order. A nil Key marks a gap: no holder resolvable at that index.
type Result struct {
	Index int
	Key   *models.Key
}

// Enumerator streams key holder pages for locks
type Enumerator struct {
	transport chain.Transport
	registry  *binding.Registry
	bus       *bus.Bus
	retry     retry.Strategy
}

// New creates an enumerator publishing on the given bus
func New(transport chain.Transport, registry *binding.Registry, b *bus.Bus, strategy retry.Strategy) *Enumerator {
	if strategy == nil {
		strategy = retry.NewNoRetryStrategy()
	}
	return &Enumerator{
		transport: transport,
		registry:  registry,
		bus:       b,
		retry:     strategy,
	}
}

// Page enumerates page number page of the lock's holders, pageSize slots per
// page. Results stream on the returned channel in index order; each resolved
// key is also published as key.updated, and one keys.page event follows once
// the page is complete. The channel closes when the page is done or the
// context is cancelled.
func (e *Enumerator) Page(ctx context.Context, lock common.Address, page, pageSize int) (<-chan Result, error) {
	if page < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("invalid page window: page=%d page_size=%d", page, pageSize)
	}

	b, err := e.registry.Resolve(ctx, lock)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve lock %s: %w", lock.Hex(), err)
	}

	head, err := e.transport.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read head block: %w", err)
	}

	out := make(chan Result, pageSize)
	go e.enumerate(ctx, b, lock, page, pageSize, head, out)
	return out, nil
}

func (e *Enumerator) enumerate(ctx context.Context, b *binding.Binding, lock common.Address, page, pageSize int, head uint64, out chan<- Result) {
	defer close(out)
	start := time.Now()
	defer func() {
		metrics.PageDuration.Observe(time.Since(start).Seconds())
	}()

	base := page * pageSize
	results := make(chan Result, pageSize)
	var wg sync.WaitGroup

	holders, err := e.bulkHolders(ctx, b, lock, page, pageSize)
	if err == nil {
		metrics.PagesEnumerated.WithLabelValues(strategyBulk).Inc()
		for i, owner := range holders {
			wg.Add(1)
			go func(index int, owner common.Address) {
				defer wg.Done()
				key := b.ReadKey(ctx, e.transport, lock, owner, head)
				results <- Result{Index: index, Key: &key}
			}(base+i, owner)
		}
	} else {
		if ctx.Err() != nil {
			return
		}
		slog.Debug("Bulk page accessor unavailable, walking indices",
			"lock", lock.Hex(),
			"page", page,
			"error", err,
		)
		metrics.PagesEnumerated.WithLabelValues(strategyIterative).Inc()
		for i := 0; i < pageSize; i++ {
			wg.Add(1)
			go func(index int) {
				defer wg.Done()
				results <- e.resolveIndex(ctx, b, lock, index, head)
			}(base + i)
		}
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Workers finish in whatever order the node answers; slots are held
	// back until every lower index has been delivered
	pending := make(map[int]Result)
	nextExpected := base
	var keys []models.Key

	for res := range results {
		pending[res.Index] = res
		for {
			ready, ok := pending[nextExpected]
			if !ok {
				break
			}
			delete(pending, nextExpected)
			nextExpected++

			if ready.Key != nil {
				keys = append(keys, *ready.Key)
				e.publishKey(ctx, *ready.Key, head)
			}
			select {
			case out <- ready:
			case <-ctx.Done():
				return
			}
		}
	}

	if ctx.Err() != nil {
		return
	}
	e.bus.PublishKeysPage(models.KeyOwnerPage{
		Lock:     lock,
		Page:     page,
		PageSize: pageSize,
		Keys:     keys,
	})
	slog.Debug("Key holder page complete",
		"lock", lock.Hex(),
		"page", page,
		"keys", len(keys),
	)
}

// bulkHolders tries the single-call page accessor. Transient transport
// trouble is retried; a revert fails fast so the caller can fall back.
func (e *Enumerator) bulkHolders(ctx context.Context, b *binding.Binding, lock common.Address, page, pageSize int) ([]common.Address, error) {
	var holders []common.Address
	err := e.retry.Execute(ctx, func() error {
		var err error
		holders, err = b.OwnersPage(ctx, e.transport, lock, page, pageSize)
		return err
	})
	return holders, err
}

// resolveIndex looks up one absolute holder index. Failure is a gap, not an
// error: old contracts leave holes behind after key transfers.
func (e *Enumerator) resolveIndex(ctx context.Context, b *binding.Binding, lock common.Address, index int, head uint64) Result {
	owner, err := b.OwnerAt(ctx, e.transport, lock, index)
	if err != nil {
		metrics.OwnerLookupGaps.Inc()
		return Result{Index: index}
	}
	key := b.ReadKey(ctx, e.transport, lock, owner, head)
	return Result{Index: index, Key: &key}
}

func (e *Enumerator) publishKey(ctx context.Context, key models.Key, head uint64) {
	if ctx.Err() != nil {
		return
	}
	e.bus.PublishRecord(models.UpdateRecord{
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
}
