package bus

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"locksync/internal/models"
)

func TestPublishOrderPerEntity(t *testing.T) {
	b := New()
	lock := common.HexToAddress("0xc43efe2c7116cb94d563b5a9d68f260ccc44256f")

	var blocks []uint64
	if err := b.SubscribeLockUpdated(func(p models.LockPatch) {
		blocks = append(blocks, p.AsOfBlock)
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for _, n := range []uint64{1, 2, 3, 4} {
		b.PublishRecord(models.UpdateRecord{
			Kind: models.LockUpdated,
			Lock: &models.LockPatch{Address: lock, AsOfBlock: n},
		})
	}

	if len(blocks) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(blocks))
	}
	for i, n := range blocks {
		if n != uint64(i+1) {
			t.Errorf("delivery %d carried block %d, expected %d", i, n, i+1)
		}
	}
}

func TestMultipleSubscribers(t *testing.T) {
	b := New()

	first, second := 0, 0
	b.SubscribeTransactionUpdated(func(models.Transaction) { first++ })
	b.SubscribeTransactionUpdated(func(models.Transaction) { second++ })

	b.PublishTransaction(models.Transaction{
		Hash:   common.HexToHash("0x01"),
		Status: models.StatusPending,
	})

	if first != 1 || second != 1 {
		t.Errorf("expected both subscribers to see the event, got %d and %d", first, second)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()

	seen := 0
	handler := func(models.KeyPatch) { seen++ }
	b.SubscribeKeySaved(handler)

	rec := models.UpdateRecord{
		Kind: models.KeySaved,
		Key: &models.KeyPatch{
			Lock:  common.HexToAddress("0x01"),
			Owner: common.HexToAddress("0x02"),
		},
	}
	b.PublishRecord(rec)

	if err := b.UnsubscribeKeySaved(handler); err != nil {
		t.Fatalf("unsubscribe failed: %v", err)
	}
	b.PublishRecord(rec)

	if seen != 1 {
		t.Errorf("expected 1 delivery after unsubscribe, got %d", seen)
	}
}

func TestRecordWithoutPayloadIsDropped(t *testing.T) {
	b := New()

	seen := 0
	b.SubscribeLockUpdated(func(models.LockPatch) { seen++ })

	// Kind/payload mismatch must not reach subscribers
	b.PublishRecord(models.UpdateRecord{Kind: models.LockUpdated})

	if seen != 0 {
		t.Errorf("expected no delivery for empty record, got %d", seen)
	}
}
