package storage

import (
	"context"

	"locksync/internal/models"
)

// Repository defines the interface for all storage operations. Saves mirror
// the view as it changes; the List methods feed rehydration at startup.
type Repository interface {
	// Locks
	SaveLock(ctx context.Context, lock *models.Lock) error
	ListLocks(ctx context.Context, limit, offset int) ([]*models.Lock, error)

	// Keys
	SaveKey(ctx context.Context, key *models.Key) error
	ListKeys(ctx context.Context, lockAddress string, limit, offset int) ([]*models.Key, error)

	// Transactions
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Close() error
}
