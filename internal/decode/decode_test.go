package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"

	"locksync/internal/binding"
	"locksync/internal/chain"
	"locksync/internal/models"
)

var (
	lockAddr    = common.HexToAddress("0xc43efe2c7116cb94d563b5a9d68f260ccc44256f")
	factoryAddr = common.HexToAddress("0xD8C88BE5e8EB88E38E6ff5cE186d764676012B0b")
	buyerA      = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	buyerB      = common.HexToAddress("0xFFcf8FDEE72ac11b5c542428B35EEF5769C409f0")
	txHash      = common.HexToHash("0x8f29ed8c737d79c8b9dd06aaa47c99a8e92d0d1e528ed2b2e1a845f2e6f09c27")
)

func mustBinding(t *testing.T, version int) *binding.Binding {
	t.Helper()
	b, ok := binding.ByVersion(version)
	if !ok {
		t.Fatalf("revision %d not registered", version)
	}
	return b
}

func topicAddress(a common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(a.Bytes(), 32))
}

func topicBig(v *big.Int) common.Hash {
	return common.BigToHash(v)
}

func TestCreateLockInput(t *testing.T) {
	b := mustBinding(t, 0)

	price, _ := new(big.Int).SetString("10000000000000000", 10) // 0.01 in base units
	data, err := b.FactoryABI.Pack("createLock", big.NewInt(604800), price, big.NewInt(100))
	if err != nil {
		t.Fatalf("failed to pack createLock: %v", err)
	}

	records := Input(b, binding.DecodeContext{TxHash: txHash, Contract: factoryAddr}, data)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Kind != models.LockUpdated {
		t.Errorf("expected kind %s, got %s", models.LockUpdated, rec.Kind)
	}
	if rec.Lock == nil {
		t.Fatal("expected a lock patch")
	}
	if rec.Lock.Address != (common.Address{}) {
		t.Error("pending creation must not carry an address, only the transaction hash")
	}
	if rec.Lock.Transaction != txHash {
		t.Error("pending creation not keyed by transaction hash")
	}
	if rec.Lock.KeyPrice == nil || *rec.Lock.KeyPrice != "0.01" {
		t.Errorf("expected key price 0.01, got %v", rec.Lock.KeyPrice)
	}
	if rec.Lock.ExpirationDuration == nil || *rec.Lock.ExpirationDuration != 604800 {
		t.Errorf("expected duration 604800, got %v", rec.Lock.ExpirationDuration)
	}
	if rec.Lock.MaxNumberOfKeys == nil || *rec.Lock.MaxNumberOfKeys != 100 {
		t.Errorf("expected 100 max keys, got %v", rec.Lock.MaxNumberOfKeys)
	}
}

func TestCreateLockUnlimitedKeys(t *testing.T) {
	b := mustBinding(t, 0)

	data, err := b.FactoryABI.Pack("createLock", big.NewInt(60), big.NewInt(1), math.MaxBig256)
	if err != nil {
		t.Fatalf("failed to pack createLock: %v", err)
	}

	records := Input(b, binding.DecodeContext{TxHash: txHash, Contract: factoryAddr}, data)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0].Lock.MaxNumberOfKeys; got == nil || *got != models.UnlimitedKeys {
		t.Errorf("expected the unlimited sentinel %d, got %v", models.UnlimitedKeys, got)
	}
}

func TestPurchaseForInput(t *testing.T) {
	b := mustBinding(t, 0)

	data, err := b.LockABI.Pack("purchaseFor", buyerA, []byte{})
	if err != nil {
		t.Fatalf("failed to pack purchaseFor: %v", err)
	}

	records := Input(b, binding.DecodeContext{TxHash: txHash, Contract: lockAddr}, data)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Kind != models.KeySaved {
		t.Errorf("expected kind %s, got %s", models.KeySaved, rec.Kind)
	}
	if rec.Key == nil || rec.Key.Owner != buyerA {
		t.Errorf("expected key for %s, got %+v", buyerA.Hex(), rec.Key)
	}
	if rec.Key.Lock != lockAddr {
		t.Errorf("expected key on lock %s, got %s", lockAddr.Hex(), rec.Key.Lock.Hex())
	}
}

func TestBatchPurchaseInput(t *testing.T) {
	b := mustBinding(t, 10)

	data, err := b.LockABI.Pack("purchase",
		[]*big.Int{big.NewInt(0), big.NewInt(0)},
		[]common.Address{buyerA, buyerB},
		[]common.Address{{}, {}},
		[]common.Address{{}, {}},
		[][]byte{{}, {}},
	)
	if err != nil {
		t.Fatalf("failed to pack purchase: %v", err)
	}

	records := Input(b, binding.DecodeContext{TxHash: txHash, Contract: lockAddr}, data)
	if len(records) != 2 {
		t.Fatalf("expected 2 records for 2 recipients, got %d", len(records))
	}
	if records[0].Key.Owner != buyerA || records[1].Key.Owner != buyerB {
		t.Error("recipients not preserved in order")
	}
}

func TestEmptyBatchPurchaseYieldsZeroRecords(t *testing.T) {
	b := mustBinding(t, 10)

	data, err := b.LockABI.Pack("purchase",
		[]*big.Int{}, []common.Address{}, []common.Address{}, []common.Address{}, [][]byte{},
	)
	if err != nil {
		t.Fatalf("failed to pack purchase: %v", err)
	}

	records := Input(b, binding.DecodeContext{TxHash: txHash, Contract: lockAddr}, data)
	if len(records) != 0 {
		t.Errorf("expected zero records for an empty batch, got %d", len(records))
	}
}

func TestUnknownSelectorIsRoutine(t *testing.T) {
	b := mustBinding(t, 0)

	records := Input(b, binding.DecodeContext{TxHash: txHash}, []byte{0xde, 0xad, 0xbe, 0xef, 0x00})
	if records != nil {
		t.Errorf("expected nil for an unknown selector, got %v", records)
	}

	if records := Input(b, binding.DecodeContext{TxHash: txHash}, []byte{0x01}); records != nil {
		t.Errorf("expected nil for truncated data, got %v", records)
	}
}

func TestMalformedArgumentsDropped(t *testing.T) {
	b := mustBinding(t, 0)

	data, err := b.FactoryABI.Pack("createLock", big.NewInt(60), big.NewInt(1), big.NewInt(1))
	if err != nil {
		t.Fatalf("failed to pack createLock: %v", err)
	}

	// Keep the selector, truncate the arguments
	records := Input(b, binding.DecodeContext{TxHash: txHash}, data[:12])
	if records != nil {
		t.Errorf("expected nil for malformed arguments, got %v", records)
	}
}

func TestTransferLogTokenKeyed(t *testing.T) {
	b := mustBinding(t, 10)
	event := b.LockABI.Events["Transfer"]

	entry := chain.Log{
		Address: lockAddr,
		Topics: []common.Hash{
			event.ID,
			topicAddress(common.Address{}),
			topicAddress(buyerA),
			topicBig(big.NewInt(7)),
		},
		BlockNumber: hexutil.Uint64(120),
	}

	records := Log(b, txHash, entry)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.Kind != models.KeySaved {
		t.Errorf("expected kind %s, got %s", models.KeySaved, rec.Kind)
	}
	if rec.Key.TokenID == nil || rec.Key.TokenID.Int64() != 7 {
		t.Errorf("expected token id 7, got %v", rec.Key.TokenID)
	}
	if rec.Key.Owner != buyerA {
		t.Errorf("expected owner %s, got %s", buyerA.Hex(), rec.Key.Owner.Hex())
	}
	if rec.AsOfBlock != 120 {
		t.Errorf("expected as-of block 120, got %d", rec.AsOfBlock)
	}

	wantID := lockAddr.Hex() + "-token-7"
	if rec.Key.ID() != wantID {
		t.Errorf("expected identity %s, got %s", wantID, rec.Key.ID())
	}
}

func TestPriceChangedLog(t *testing.T) {
	b := mustBinding(t, 1)
	event := b.LockABI.Events["PriceChanged"]

	newPrice, _ := new(big.Int).SetString("20000000000000000", 10)
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(1), newPrice)
	if err != nil {
		t.Fatalf("failed to pack PriceChanged data: %v", err)
	}

	entry := chain.Log{
		Address:     lockAddr,
		Topics:      []common.Hash{event.ID},
		Data:        data,
		BlockNumber: hexutil.Uint64(90),
	}

	records := Log(b, txHash, entry)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0].Lock.KeyPrice; got == nil || *got != "0.02" {
		t.Errorf("expected key price 0.02, got %v", got)
	}
}

func TestLogsIsolateBadEntries(t *testing.T) {
	b := mustBinding(t, 10)
	event := b.LockABI.Events["Transfer"]

	good := chain.Log{
		Address: lockAddr,
		Topics: []common.Hash{
			event.ID,
			topicAddress(common.Address{}),
			topicAddress(buyerA),
			topicBig(big.NewInt(3)),
		},
	}
	// Recognized topic but missing the indexed token id
	bad := chain.Log{
		Address: lockAddr,
		Topics: []common.Hash{
			event.ID,
			topicAddress(common.Address{}),
			topicAddress(buyerB),
		},
	}
	foreign := chain.Log{
		Address: lockAddr,
		Topics:  []common.Hash{common.HexToHash("0x01")},
	}

	records := Logs(b, txHash, []chain.Log{bad, good, foreign})
	if len(records) != 1 {
		t.Fatalf("expected only the well-formed entry to decode, got %d records", len(records))
	}
	if records[0].Key.Owner != buyerA {
		t.Errorf("wrong entry survived: %+v", records[0].Key)
	}
}
