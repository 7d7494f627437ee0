// Package tracker drives tracked transactions through their lifecycle:
// PENDING -> SUBMITTED -> MINED -> {CONFIRMED | FAILED}. One goroutine polls
// per tracked hash; progress is published on the bus only, never returned.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/binding"
	"locksync/internal/bus"
	"locksync/internal/chain"
	"locksync/internal/decode"
	"locksync/internal/metrics"
	"locksync/internal/models"
	"locksync/internal/retry"
)

// Config bounds the poll loop
type Config struct {
	// BlockTime is the expected block period and the base poll interval
	BlockTime time.Duration

	// RequiredConfirmations is how many blocks must be mined on top of a
	// transaction before it counts as CONFIRMED
	RequiredConfirmations uint64

	// MaxAttempts bounds how many polls may pass without the transaction
	// landing in a block before the tracker gives up
	MaxAttempts int

	// MaxDelay caps the exponential backoff applied after empty polls
	MaxDelay time.Duration
}

// Defaults carries what the caller already knows about a transaction it just
// submitted. Known call-data skips the wait for the node to echo it back: we
// know what we sent.
type Defaults struct {
	To    common.Address
	Input []byte
}

// Tracker owns the poll workers for all tracked hashes
type Tracker struct {
	transport chain.Transport
	registry  *binding.Registry
	bus       *bus.Bus
	config    Config
	retry     retry.Strategy

	mu       sync.Mutex
	watchers map[common.Hash]context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a tracker publishing on the given bus
func New(transport chain.Transport, registry *binding.Registry, b *bus.Bus, config Config, strategy retry.Strategy) *Tracker {
	if strategy == nil {
		strategy = retry.NewNoRetryStrategy()
	}
	return &Tracker{
		transport: transport,
		registry:  registry,
		bus:       b,
		config:    config,
		retry:     strategy,
		watchers:  make(map[common.Hash]context.CancelFunc),
	}
}

// Track starts polling a transaction hash. Tracking an already-tracked hash
// is a no-op. The worker retires on its own once it reaches a terminal
// status, or when Untrack or context cancellation stops it.
func (t *Tracker) Track(ctx context.Context, hash common.Hash, defaults *Defaults) {
	t.mu.Lock()
	if _, exists := t.watchers[hash]; exists {
		t.mu.Unlock()
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	t.watchers[hash] = cancel
	t.mu.Unlock()

	metrics.TransactionsTracked.Inc()
	metrics.ActiveTrackers.Inc()

	w := &watcher{
		tracker:  t,
		hash:     hash,
		defaults: defaults,
		tx:       models.Transaction{Hash: hash, Type: models.TypeUnknown},
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer metrics.ActiveTrackers.Dec()
		defer t.remove(hash)
		w.run(wctx)
	}()
}

// Untrack cancels the worker for a hash. In-flight reads finish but publish
// nothing once cancelled.
func (t *Tracker) Untrack(hash common.Hash) {
	t.mu.Lock()
	cancel, ok := t.watchers[hash]
	t.mu.Unlock()
	if ok {
		cancel()
	}
}

// Stop cancels every worker and waits for them to retire
func (t *Tracker) Stop() {
	t.mu.Lock()
	for _, cancel := range t.watchers {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) remove(hash common.Hash) {
	t.mu.Lock()
	delete(t.watchers, hash)
	t.mu.Unlock()
}

// watcher is the per-hash poll worker
type watcher struct {
	tracker  *Tracker
	hash     common.Hash
	defaults *Defaults

	tx           models.Transaction
	inputDecoded bool
	logsDecoded  bool
}

// statusRank enforces that transitions are emitted strictly forward
var statusRank = map[models.TransactionStatus]int{
	models.StatusPending:   1,
	models.StatusSubmitted: 2,
	models.StatusMined:     3,
	models.StatusConfirmed: 4,
	models.StatusFailed:    4,
}

func (w *watcher) run(ctx context.Context) {
	cfg := w.tracker.config

	// The transaction exists the moment the caller asks to track it
	w.transition(ctx, models.StatusPending)

	// Caller-supplied call-data decodes immediately
	if w.defaults != nil && len(w.defaults.Input) > 0 {
		if !w.decodeInput(ctx, w.defaults.To, w.defaults.Input) {
			return
		}
	}

	attempts := 0
	delay := cfg.BlockTime

	for {
		if ctx.Err() != nil {
			return
		}

		progressed, terminal := w.poll(ctx)
		if terminal || ctx.Err() != nil {
			return
		}

		if w.tx.Status == models.StatusPending || w.tx.Status == models.StatusSubmitted {
			attempts++
			if attempts >= cfg.MaxAttempts {
				slog.Warn("Giving up on transaction never observed in a block",
					"tx_hash", w.hash.Hex(),
					"attempts", attempts,
				)
				w.fail(ctx, models.FailNotObserved)
				return
			}
		}

		if progressed {
			delay = cfg.BlockTime
		} else {
			delay *= 2
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// poll performs one lifecycle step. It reports whether the poll observed
// progress (resets backoff) and whether the transaction reached a terminal
// status.
func (w *watcher) poll(ctx context.Context) (progressed, terminal bool) {
	start := time.Now()
	metrics.PollsTotal.Inc()
	defer func() {
		metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	var head uint64
	var tx *chain.Transaction

	err := w.tracker.retry.Execute(ctx, func() error {
		var err error
		head, err = w.tracker.transport.BlockNumber(ctx)
		if err != nil {
			return err
		}
		tx, err = w.tracker.transport.TransactionByHash(ctx, w.hash)
		return err
	})
	if err != nil {
		metrics.PollFailures.Inc()
		slog.Warn("Poll failed, will retry next interval",
			"tx_hash", w.hash.Hex(),
			"error", err,
		)
		return false, false
	}

	// Not known to the node yet: submitted to the network but not received
	// here. Stay pending.
	if tx == nil {
		return false, false
	}

	if tx.To != nil {
		w.tx.To = *tx.To
	}

	// Propagated but not mined: the pending pool has the call-data
	if !tx.Mined() {
		if !w.inputDecoded && len(tx.Input) > 0 && tx.To != nil {
			if !w.decodeInput(ctx, *tx.To, tx.Input) {
				return false, true
			}
		}
		return w.transition(ctx, models.StatusSubmitted), false
	}

	txBlock := tx.BlockNumber.ToInt().Uint64()
	w.tx.BlockNumber = txBlock
	if head >= txBlock {
		w.tx.Confirmations = head - txBlock
	} else {
		w.tx.Confirmations = 0
	}

	if !w.inputDecoded && len(tx.Input) > 0 && tx.To != nil {
		if !w.decodeInput(ctx, *tx.To, tx.Input) {
			return false, true
		}
	}

	mined := w.transition(ctx, models.StatusMined)

	var receipt *chain.Receipt
	err = w.tracker.retry.Execute(ctx, func() error {
		var err error
		receipt, err = w.tracker.transport.TransactionReceipt(ctx, w.hash)
		return err
	})
	if err != nil {
		metrics.PollFailures.Inc()
		slog.Warn("Receipt fetch failed, will retry next interval",
			"tx_hash", w.hash.Hex(),
			"error", err,
		)
		return mined, false
	}
	if receipt == nil {
		return mined, false
	}

	// A revert still went through SUBMITTED/MINED; it is reported, never
	// retried. Resubmission is the caller's decision, under a new hash.
	if receipt.Reverted() {
		w.fail(ctx, models.FailReverted)
		return true, true
	}

	if !w.logsDecoded && tx.To != nil {
		if !w.decodeLogs(ctx, *tx.To, receipt.Logs) {
			return false, true
		}
	}

	if w.tx.Confirmations >= w.tracker.config.RequiredConfirmations {
		w.transition(ctx, models.StatusConfirmed)
		return true, true
	}

	return mined, false
}

// decodeInput classifies the call-data and publishes whatever records its
// decoder produces. Returns false when tracking cannot continue (the
// destination contract version is unknown).
func (w *watcher) decodeInput(ctx context.Context, to common.Address, input []byte) bool {
	b, err := w.tracker.registry.Resolve(ctx, to)
	if err != nil {
		if errors.Is(err, binding.ErrUnknownVersion) || errors.Is(err, binding.ErrNotDeployed) {
			slog.Error("Cannot decode transaction for unknown contract version",
				"tx_hash", w.hash.Hex(),
				"contract", to.Hex(),
				"error", err,
			)
			w.fail(ctx, models.FailUnknownVersion)
			return false
		}
		// Transport trouble: decoding waits for a later poll
		slog.Warn("Binding resolution failed, deferring decode",
			"tx_hash", w.hash.Hex(),
			"error", err,
		)
		return true
	}

	w.tx.To = to
	w.tx.Type = b.TransactionType(input)
	w.inputDecoded = true

	records := decode.Input(b, binding.DecodeContext{
		TxHash:      w.hash,
		Contract:    to,
		BlockNumber: w.tx.BlockNumber,
	}, input)
	w.publishRecords(ctx, records)
	return true
}

// decodeLogs decodes the receipt's event logs exactly once
func (w *watcher) decodeLogs(ctx context.Context, to common.Address, logs []chain.Log) bool {
	b, err := w.tracker.registry.Resolve(ctx, to)
	if err != nil {
		if errors.Is(err, binding.ErrUnknownVersion) || errors.Is(err, binding.ErrNotDeployed) {
			w.fail(ctx, models.FailUnknownVersion)
			return false
		}
		return true
	}

	w.logsDecoded = true
	records := decode.Logs(b, w.hash, logs)
	w.publishRecords(ctx, records)
	return true
}

// publishRecords publishes decoded records and remembers the identities the
// transaction touched
func (w *watcher) publishRecords(ctx context.Context, records []models.UpdateRecord) {
	for _, rec := range records {
		if rec.Lock != nil && rec.Lock.Address != (common.Address{}) {
			w.tx.Lock = rec.Lock.Address
		}
		if rec.Key != nil {
			w.tx.KeyID = rec.Key.ID()
			w.tx.Lock = rec.Key.Lock
		}
		if ctx.Err() != nil {
			return
		}
		w.tracker.bus.PublishRecord(rec)
	}
}

// transition advances the lifecycle and publishes the snapshot. Transitions
// only ever move forward; a repeated or backwards status publishes nothing.
func (w *watcher) transition(ctx context.Context, status models.TransactionStatus) bool {
	if statusRank[status] <= statusRank[w.tx.Status] {
		return false
	}
	w.tx.Status = status

	if ctx.Err() != nil {
		return true // state advanced, but nothing is published after cancel
	}

	metrics.StatusTransitions.WithLabelValues(string(status)).Inc()
	slog.Debug("Transaction transition",
		"tx_hash", w.hash.Hex(),
		"status", status,
		"confirmations", w.tx.Confirmations,
	)
	w.tracker.bus.PublishTransaction(w.tx)
	return true
}

// fail emits the terminal FAILED snapshot with its reason code
func (w *watcher) fail(ctx context.Context, reason models.FailReason) {
	if w.tx.Status.Terminal() {
		return
	}
	w.tx.Status = models.StatusFailed
	w.tx.FailReason = reason

	if ctx.Err() != nil {
		return
	}

	metrics.StatusTransitions.WithLabelValues(string(models.StatusFailed)).Inc()
	slog.Info("Transaction failed",
		"tx_hash", w.hash.Hex(),
		"reason", reason,
	)
	w.tracker.bus.PublishTransaction(w.tx)
}
