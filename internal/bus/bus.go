// Package bus is the typed publish/subscribe channel every component
// publishes canonical update records on. Publishing is synchronous, so
// events published by one producer about one entity reach every subscriber
// in publish order; cross-entity ordering is left to subscribers (use the
// AsOfBlock embedded in each record).
package bus

import (
	"log/slog"

	evbus "github.com/asaskevich/EventBus"

	"locksync/internal/models"
)

// Bus is a multi-producer multi-consumer event channel
type Bus struct {
	inner evbus.Bus
}

// New creates an empty bus
func New() *Bus {
	return &Bus{inner: evbus.New()}
}

// PublishRecord routes an update record to its topic
func (b *Bus) PublishRecord(rec models.UpdateRecord) {
	switch rec.Kind {
	case models.LockUpdated:
		if rec.Lock != nil {
			b.inner.Publish(string(models.LockUpdated), *rec.Lock)
		}
	case models.KeyUpdated:
		if rec.Key != nil {
			b.inner.Publish(string(models.KeyUpdated), *rec.Key)
		}
	case models.KeySaved:
		if rec.Key != nil {
			b.inner.Publish(string(models.KeySaved), *rec.Key)
		}
	default:
		slog.Warn("Bus: dropping record with unroutable kind", "kind", rec.Kind)
	}
}

// PublishTransaction publishes a transaction snapshot
func (b *Bus) PublishTransaction(tx models.Transaction) {
	b.inner.Publish(string(models.TransactionUpdated), tx)
}

// PublishKeysPage publishes an assembled key owner page
func (b *Bus) PublishKeysPage(page models.KeyOwnerPage) {
	b.inner.Publish(string(models.KeysPage), page)
}

// SubscribeLockUpdated registers a handler for lock.updated
func (b *Bus) SubscribeLockUpdated(fn func(models.LockPatch)) error {
	return b.inner.Subscribe(string(models.LockUpdated), fn)
}

// SubscribeKeyUpdated registers a handler for key.updated
func (b *Bus) SubscribeKeyUpdated(fn func(models.KeyPatch)) error {
	return b.inner.Subscribe(string(models.KeyUpdated), fn)
}

// SubscribeKeySaved registers a handler for key.saved
func (b *Bus) SubscribeKeySaved(fn func(models.KeyPatch)) error {
	return b.inner.Subscribe(string(models.KeySaved), fn)
}

// SubscribeTransactionUpdated registers a handler for transaction.updated
func (b *Bus) SubscribeTransactionUpdated(fn func(models.Transaction)) error {
	return b.inner.Subscribe(string(models.TransactionUpdated), fn)
}

// SubscribeKeysPage registers a handler for keys.page
func (b *Bus) SubscribeKeysPage(fn func(models.KeyOwnerPage)) error {
	return b.inner.Subscribe(string(models.KeysPage), fn)
}

// UnsubscribeLockUpdated removes a previously registered handler
func (b *Bus) UnsubscribeLockUpdated(fn func(models.LockPatch)) error {
	return b.inner.Unsubscribe(string(models.LockUpdated), fn)
}

// UnsubscribeKeyUpdated removes a previously registered handler
func (b *Bus) UnsubscribeKeyUpdated(fn func(models.KeyPatch)) error {
	return b.inner.Unsubscribe(string(models.KeyUpdated), fn)
}

// UnsubscribeKeySaved removes a previously registered handler
func (b *Bus) UnsubscribeKeySaved(fn func(models.KeyPatch)) error {
	return b.inner.Unsubscribe(string(models.KeySaved), fn)
}

// UnsubscribeTransactionUpdated removes a previously registered handler
func (b *Bus) UnsubscribeTransactionUpdated(fn func(models.Transaction)) error {
	return b.inner.Unsubscribe(string(models.TransactionUpdated), fn)
}

// UnsubscribeKeysPage removes a previously registered handler
func (b *Bus) UnsubscribeKeysPage(fn func(models.KeyOwnerPage)) error {
	return b.inner.Unsubscribe(string(models.KeysPage), fn)
}
