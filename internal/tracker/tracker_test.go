package tracker

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"locksync/internal/binding"
	"locksync/internal/bus"
	"locksync/internal/chain"
	"locksync/internal/models"
	"locksync/internal/retry"
)

var (
	factoryAddr = common.HexToAddress("0xD8C88BE5e8EB88E38E6ff5cE186d764676012B0b")
	lockAddr    = common.HexToAddress("0xc43efe2c7116cb94d563b5a9d68f260ccc44256f")
	ownerAddr   = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	txHash      = common.HexToHash("0x8f29ed8c737d79c8b9dd06aaa47c99a8e92d0d1e528ed2b2e1a845f2e6f09c27")
)

// pollStep is what the node answers during one poll iteration
type pollStep struct {
	head    uint64
	tx      *chain.Transaction
	receipt *chain.Receipt
}

// scriptedTransport serves a fixed sequence of poll answers; the last step
// repeats once the script runs out
type scriptedTransport struct {
	mu    sync.Mutex
	steps []pollStep
	calls int
}

func (s *scriptedTransport) BlockNumber(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	} else {
		s.calls++
	}
	head := s.steps[i].head
	s.mu.Unlock()
	return head, nil
}

func (s *scriptedTransport) TransactionByHash(ctx context.Context, hash common.Hash) (*chain.Transaction, error) {
	s.mu.Lock()
	i := s.calls - 1
	if i < 0 {
		i = 0
	}
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	tx := s.steps[i].tx
	s.mu.Unlock()
	return tx, nil
}

func (s *scriptedTransport) TransactionReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	s.mu.Lock()
	i := s.calls - 1
	if i < 0 {
		i = 0
	}
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	r := s.steps[i].receipt
	s.mu.Unlock()
	return r, nil
}

func (s *scriptedTransport) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return nil, errors.New("execution reverted")
}

func (s *scriptedTransport) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	return []byte{0xde, 0xad}, nil
}

// capture subscribes to everything and funnels terminal statuses to a channel
type capture struct {
	mu       sync.Mutex
	statuses []models.TransactionStatus
	locks    []models.LockPatch
	keys     []models.KeyPatch
	last     models.Transaction
	done     chan struct{}
}

func newCapture(b *bus.Bus) *capture {
	c := &capture{done: make(chan struct{})}
	b.SubscribeTransactionUpdated(func(tx models.Transaction) {
		c.mu.Lock()
		c.statuses = append(c.statuses, tx.Status)
		c.last = tx
		c.mu.Unlock()
		if tx.Status.Terminal() {
			close(c.done)
		}
	})
	b.SubscribeLockUpdated(func(p models.LockPatch) {
		c.mu.Lock()
		c.locks = append(c.locks, p)
		c.mu.Unlock()
	})
	b.SubscribeKeySaved(func(p models.KeyPatch) {
		c.mu.Lock()
		c.keys = append(c.keys, p)
		c.mu.Unlock()
	})
	return c
}

func (c *capture) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("transaction never reached a terminal status")
	}
}

func testConfig() Config {
	return Config{
		BlockTime:             2 * time.Millisecond,
		RequiredConfirmations: 10,
		MaxAttempts:           50,
		MaxDelay:              10 * time.Millisecond,
	}
}

func newLockLog(blockNumber uint64) chain.Log {
	b, _ := binding.ByVersion(0)
	event := b.FactoryABI.Events["NewLock"]
	return chain.Log{
		Address: factoryAddr,
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(common.LeftPadBytes(ownerAddr.Bytes(), 32)),
			common.BytesToHash(common.LeftPadBytes(lockAddr.Bytes(), 32)),
		},
		BlockNumber: hexutil.Uint64(blockNumber),
	}
}

func createLockInput(t *testing.T) []byte {
	t.Helper()
	b, _ := binding.ByVersion(0)
	price, _ := new(big.Int).SetString("10000000000000000", 10)
	data, err := b.FactoryABI.Pack("createLock", big.NewInt(604800), price, big.NewInt(100))
	if err != nil {
		t.Fatalf("failed to pack createLock: %v", err)
	}
	return data
}

func TestLockCreationLifecycle(t *testing.T) {
	input := createLockInput(t)
	minedBlock := hexutil.Big(*big.NewInt(100))

	transport := &scriptedTransport{steps: []pollStep{
		// poll 1: node has not seen the hash
		{head: 99, tx: nil},
		// poll 2: in the pending pool, call-data available
		{head: 99, tx: &chain.Transaction{Hash: txHash, To: &factoryAddr, Input: input}},
		// poll 3: mined at block 100, head still 100
		{head: 100,
			tx:      &chain.Transaction{Hash: txHash, To: &factoryAddr, Input: input, BlockNumber: &minedBlock},
			receipt: &chain.Receipt{Status: 1, BlockNumber: minedBlock, Logs: []chain.Log{newLockLog(100)}}},
		// poll 4: twelve blocks on top
		{head: 112,
			tx:      &chain.Transaction{Hash: txHash, To: &factoryAddr, Input: input, BlockNumber: &minedBlock},
			receipt: &chain.Receipt{Status: 1, BlockNumber: minedBlock, Logs: []chain.Log{newLockLog(100)}}},
	}}

	registry := binding.NewRegistry(transport)
	if _, err := registry.ResolveWithVersion(factoryAddr, 0); err != nil {
		t.Fatalf("failed to pin version: %v", err)
	}

	b := bus.New()
	c := newCapture(b)

	tr := New(transport, registry, b, testConfig(), retry.NewNoRetryStrategy())
	tr.Track(context.Background(), txHash, nil)
	c.wait(t)
	tr.Stop()

	want := []models.TransactionStatus{
		models.StatusPending,
		models.StatusSubmitted,
		models.StatusMined,
		models.StatusConfirmed,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.statuses) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, c.statuses)
	}
	for i := range want {
		if c.statuses[i] != want[i] {
			t.Fatalf("expected statuses %v, got %v", want, c.statuses)
		}
	}

	if c.last.Confirmations != 12 {
		t.Errorf("expected 12 confirmations at CONFIRMED, got %d", c.last.Confirmations)
	}
	if c.last.Type != models.TypeLockCreation {
		t.Errorf("expected type %s, got %s", models.TypeLockCreation, c.last.Type)
	}

	// One lock.updated from the decoded call-data, one from the NewLock log
	if len(c.locks) != 2 {
		t.Fatalf("expected 2 lock.updated records, got %d", len(c.locks))
	}
	fromInput := c.locks[0]
	if fromInput.Transaction != txHash {
		t.Error("pending lock record not keyed by transaction hash")
	}
	if fromInput.KeyPrice == nil || *fromInput.KeyPrice != "0.01" {
		t.Errorf("expected key price 0.01, got %v", fromInput.KeyPrice)
	}
	fromLog := c.locks[1]
	if fromLog.Address != lockAddr {
		t.Errorf("expected NewLock record for %s, got %s", lockAddr.Hex(), fromLog.Address.Hex())
	}
}

func TestRevertedTransactionFails(t *testing.T) {
	input := createLockInput(t)
	minedBlock := hexutil.Big(*big.NewInt(50))

	transport := &scriptedTransport{steps: []pollStep{
		{head: 50,
			tx:      &chain.Transaction{Hash: txHash, To: &factoryAddr, Input: input, BlockNumber: &minedBlock},
			receipt: &chain.Receipt{Status: 0, BlockNumber: minedBlock}},
	}}

	registry := binding.NewRegistry(transport)
	registry.ResolveWithVersion(factoryAddr, 0)

	b := bus.New()
	c := newCapture(b)

	tr := New(transport, registry, b, testConfig(), retry.NewNoRetryStrategy())
	tr.Track(context.Background(), txHash, nil)
	c.wait(t)
	tr.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.Status != models.StatusFailed {
		t.Fatalf("expected FAILED, got %s", c.last.Status)
	}
	if c.last.FailReason != models.FailReverted {
		t.Errorf("expected reason %s, got %s", models.FailReverted, c.last.FailReason)
	}

	// MINED must have been emitted before the terminal failure
	sawMined := false
	for _, s := range c.statuses {
		if s == models.StatusMined {
			sawMined = true
		}
		if s == models.StatusFailed && !sawMined {
			t.Error("FAILED emitted before MINED for a reverted transaction")
		}
	}
}

func TestNeverObservedGivesUp(t *testing.T) {
	transport := &scriptedTransport{steps: []pollStep{{head: 7, tx: nil}}}

	registry := binding.NewRegistry(transport)

	b := bus.New()
	c := newCapture(b)

	cfg := testConfig()
	cfg.MaxAttempts = 3

	tr := New(transport, registry, b, cfg, retry.NewNoRetryStrategy())
	tr.Track(context.Background(), txHash, nil)
	c.wait(t)
	tr.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.Status != models.StatusFailed {
		t.Fatalf("expected FAILED, got %s", c.last.Status)
	}
	if c.last.FailReason != models.FailNotObserved {
		t.Errorf("expected reason %s, got %s", models.FailNotObserved, c.last.FailReason)
	}
}

func TestUnknownVersionFails(t *testing.T) {
	// CodeAt serves unrecognized bytecode and the version accessor reverts,
	// so decoding the supplied call-data cannot proceed
	transport := &scriptedTransport{steps: []pollStep{{head: 1, tx: nil}}}

	registry := binding.NewRegistry(transport)

	b := bus.New()
	c := newCapture(b)

	tr := New(transport, registry, b, testConfig(), retry.NewNoRetryStrategy())
	tr.Track(context.Background(), txHash, &Defaults{To: factoryAddr, Input: createLockInput(t)})
	c.wait(t)
	tr.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.FailReason != models.FailUnknownVersion {
		t.Errorf("expected reason %s, got %s", models.FailUnknownVersion, c.last.FailReason)
	}
}

func TestKnownCallDataDecodesBeforeFirstPoll(t *testing.T) {
	input := createLockInput(t)
	transport := &scriptedTransport{steps: []pollStep{{head: 1, tx: nil}}}

	registry := binding.NewRegistry(transport)
	registry.ResolveWithVersion(factoryAddr, 0)

	b := bus.New()

	var mu sync.Mutex
	var locks []models.LockPatch
	b.SubscribeLockUpdated(func(p models.LockPatch) {
		mu.Lock()
		locks = append(locks, p)
		mu.Unlock()
	})

	cfg := testConfig()
	cfg.MaxAttempts = 2

	c := newCapture(b)
	tr := New(transport, registry, b, cfg, retry.NewNoRetryStrategy())
	tr.Track(context.Background(), txHash, &Defaults{To: factoryAddr, Input: input})
	c.wait(t)
	tr.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(locks) != 1 {
		t.Fatalf("expected 1 lock.updated from supplied call-data, got %d", len(locks))
	}
	if locks[0].MaxNumberOfKeys == nil || *locks[0].MaxNumberOfKeys != 100 {
		t.Errorf("expected max keys 100, got %v", locks[0].MaxNumberOfKeys)
	}
}

func TestUntrackSilencesWorker(t *testing.T) {
	transport := &scriptedTransport{steps: []pollStep{{head: 1, tx: nil}}}

	registry := binding.NewRegistry(transport)
	b := bus.New()

	var mu sync.Mutex
	count := 0
	b.SubscribeTransactionUpdated(func(models.Transaction) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	tr := New(transport, registry, b, testConfig(), retry.NewNoRetryStrategy())
	tr.Track(context.Background(), txHash, nil)

	time.Sleep(5 * time.Millisecond)
	tr.Untrack(txHash)
	tr.Stop()

	mu.Lock()
	after := count
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != after {
		t.Errorf("events published after Untrack: %d -> %d", after, count)
	}
}
