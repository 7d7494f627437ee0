package storage

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"locksync/internal/metrics"
	"locksync/internal/models"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

// Migrate creates the schema if it does not exist yet
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS locks (
			address TEXT PRIMARY KEY,
			owner TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			key_price TEXT NOT NULL DEFAULT '0',
			expiration_duration BIGINT NOT NULL DEFAULT 0,
			max_number_of_keys BIGINT NOT NULL DEFAULT 0,
			outstanding_keys BIGINT NOT NULL DEFAULT 0,
			balance TEXT NOT NULL DEFAULT '0',
			as_of_block BIGINT NOT NULL DEFAULT 0,
			tx_hash TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS keys (
			id TEXT PRIMARY KEY,
			lock_address TEXT NOT NULL,
			owner TEXT NOT NULL,
			token_id TEXT,
			expiration NUMERIC(20,0) NOT NULL DEFAULT 0,
			data BYTEA,
			as_of_block BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS keys_lock_address_idx ON keys (lock_address)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			hash TEXT PRIMARY KEY,
			to_address TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'UNKNOWN',
			confirmations BIGINT NOT NULL DEFAULT 0,
			block_number BIGINT NOT NULL DEFAULT 0,
			fail_reason TEXT NOT NULL DEFAULT '',
			lock_address TEXT NOT NULL DEFAULT '',
			key_id TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// SaveLock upserts a lock snapshot. A row already holding a newer as_of_block
// wins over this write.
func (r *PostgresRepository) SaveLock(ctx context.Context, lock *models.Lock) error {
	start := time.Now()
	defer func() {
		metrics.UpsertDuration.Observe(time.Since(start).Seconds())
	}()

	query := `
		INSERT INTO locks (
			address, owner, name, key_price, expiration_duration,
			max_number_of_keys, outstanding_keys, balance, as_of_block, tx_hash,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (address) DO UPDATE SET
			owner = EXCLUDED.owner,
			name = EXCLUDED.name,
			key_price = EXCLUDED.key_price,
			expiration_duration = EXCLUDED.expiration_duration,
			max_number_of_keys = EXCLUDED.max_number_of_keys,
			outstanding_keys = EXCLUDED.outstanding_keys,
			balance = EXCLUDED.balance,
			as_of_block = EXCLUDED.as_of_block,
			tx_hash = EXCLUDED.tx_hash,
			updated_at = now()
		WHERE locks.as_of_block <= EXCLUDED.as_of_block
	`

	_, err := r.pool.Exec(ctx, query,
		lock.Address.Hex(),
		lock.Owner.Hex(),
		lock.Name,
		lock.KeyPrice,
		int64(lock.ExpirationDuration),
		lock.MaxNumberOfKeys,
		int64(lock.OutstandingKeys),
		lock.Balance,
		int64(lock.AsOfBlock),
		lock.Transaction.Hex(),
	)
	if err != nil {
		return fmt.Errorf("failed to save lock: %w", err)
	}
	return nil
}

// ListLocks lists locks with pagination, most recently observed first
func (r *PostgresRepository) ListLocks(ctx context.Context, limit, offset int) ([]*models.Lock, error) {
	query := `
		SELECT address, owner, name, key_price, expiration_duration,
			max_number_of_keys, outstanding_keys, balance, as_of_block, tx_hash
		FROM locks
		ORDER BY as_of_block DESC, address
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	defer rows.Close()

	var locks []*models.Lock
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lock: %w", err)
		}
		locks = append(locks, lock)
	}
	return locks, rows.Err()
}

// SaveKey upserts a key snapshot under the same block-order guard as locks
func (r *PostgresRepository) SaveKey(ctx context.Context, key *models.Key) error {
	start := time.Now()
	defer func() {
		metrics.UpsertDuration.Observe(time.Since(start).Seconds())
	}()

	var tokenID *string
	if key.TokenID != nil {
		s := key.TokenID.String()
		tokenID = &s
	}

	query := `
		INSERT INTO keys (id, lock_address, owner, token_id, expiration, data, as_of_block, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			token_id = EXCLUDED.token_id,
			expiration = EXCLUDED.expiration,
			data = EXCLUDED.data,
			as_of_block = EXCLUDED.as_of_block,
			updated_at = now()
		WHERE keys.as_of_block <= EXCLUDED.as_of_block
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID(),
		key.Lock.Hex(),
		key.Owner.Hex(),
		tokenID,
		strconv.FormatUint(key.Expiration, 10),
		key.Data,
		int64(key.AsOfBlock),
	)
	if err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	return nil
}

// ListKeys lists the keys of a lock with pagination
func (r *PostgresRepository) ListKeys(ctx context.Context, lockAddress string, limit, offset int) ([]*models.Key, error) {
	query := `
		SELECT lock_address, owner, token_id, expiration::text, data, as_of_block
		FROM keys
		WHERE lock_address = $1
		ORDER BY owner
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, lockAddress, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.Key
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// SaveTransaction upserts the latest lifecycle snapshot of a transaction
func (r *PostgresRepository) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	start := time.Now()
	defer func() {
		metrics.UpsertDuration.Observe(time.Since(start).Seconds())
	}()

	query := `
		INSERT INTO transactions (
			hash, to_address, status, type, confirmations, block_number,
			fail_reason, lock_address, key_id, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (hash) DO UPDATE SET
			to_address = EXCLUDED.to_address,
			status = EXCLUDED.status,
			type = EXCLUDED.type,
			confirmations = EXCLUDED.confirmations,
			block_number = EXCLUDED.block_number,
			fail_reason = EXCLUDED.fail_reason,
			lock_address = EXCLUDED.lock_address,
			key_id = EXCLUDED.key_id,
			updated_at = now()
	`

	_, err := r.pool.Exec(ctx, query,
		tx.Hash.Hex(),
		tx.To.Hex(),
		string(tx.Status),
		string(tx.Type),
		int64(tx.Confirmations),
		int64(tx.BlockNumber),
		string(tx.FailReason),
		tx.Lock.Hex(),
		tx.KeyID,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// ListTransactions lists lifecycle snapshots with pagination
func (r *PostgresRepository) ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT hash, to_address, status, type, confirmations, block_number,
			fail_reason, lock_address, key_id
		FROM transactions
		ORDER BY block_number DESC, hash
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Close closes the connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLock(row rowScanner) (*models.Lock, error) {
	var lock models.Lock
	var address, owner, txHash string

	err := row.Scan(
		&address,
		&owner,
		&lock.Name,
		&lock.KeyPrice,
		&lock.ExpirationDuration,
		&lock.MaxNumberOfKeys,
		&lock.OutstandingKeys,
		&lock.Balance,
		&lock.AsOfBlock,
		&txHash,
	)
	if err != nil {
		return nil, err
	}

	lock.Address = common.HexToAddress(address)
	lock.Owner = common.HexToAddress(owner)
	lock.Transaction = common.HexToHash(txHash)
	return &lock, nil
}

func scanKey(row rowScanner) (*models.Key, error) {
	var key models.Key
	var lockAddress, owner, expiration string
	var tokenID *string

	err := row.Scan(
		&lockAddress,
		&owner,
		&tokenID,
		&expiration,
		&key.Data,
		&key.AsOfBlock,
	)
	if err != nil {
		return nil, err
	}

	key.Lock = common.HexToAddress(lockAddress)
	key.Owner = common.HexToAddress(owner)
	if tokenID != nil {
		id, ok := new(big.Int).SetString(*tokenID, 10)
		if !ok {
			return nil, fmt.Errorf("malformed token_id %q", *tokenID)
		}
		key.TokenID = id
	}
	exp, err := strconv.ParseUint(expiration, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed expiration %q: %w", expiration, err)
	}
	key.Expiration = exp
	return &key, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var hash, to, status, txType, failReason, lockAddress string

	err := row.Scan(
		&hash,
		&to,
		&status,
		&txType,
		&tx.Confirmations,
		&tx.BlockNumber,
		&failReason,
		&lockAddress,
		&tx.KeyID,
	)
	if err != nil {
		return nil, err
	}

	tx.Hash = common.HexToHash(hash)
	tx.To = common.HexToAddress(to)
	tx.Status = models.TransactionStatus(status)
	tx.Type = models.TransactionType(txType)
	tx.FailReason = models.FailReason(failReason)
	tx.Lock = common.HexToAddress(lockAddress)
	return &tx, nil
}
