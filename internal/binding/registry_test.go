package binding

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"locksync/internal/chain"
	"locksync/internal/models"
)

// probeTransport serves just enough of the node surface for resolution
type probeTransport struct {
	code      []byte
	codeErr   error
	callOut   []byte
	callErr   error
	codeCalls atomic.Int64
}

func (p *probeTransport) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	p.codeCalls.Add(1)
	return p.code, p.codeErr
}

func (p *probeTransport) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return p.callOut, p.callErr
}

func (p *probeTransport) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }

func (p *probeTransport) TransactionByHash(ctx context.Context, hash common.Hash) (*chain.Transaction, error) {
	return nil, nil
}

func (p *probeTransport) TransactionReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	return nil, nil
}

var testLockAddr = common.HexToAddress("0xc43efe2c7116cb94d563b5a9d68f260ccc44256f")

// synthetic revision whose code hash is the hash of known bytes, so the
// bytecode match path is exercisable without real deployments
var (
	synthCode     = []byte{0x60, 0x80, 0x60, 0x40, 0x52, 0x99}
	registerSynth = sync.OnceValue(func() *Binding {
		b := &Binding{
			Version:     99,
			KeyIdentity: OwnerKeyed,
			CodeHash:    crypto.Keccak256Hash(synthCode),
			LockABI:     mustParseABI(v0LockABI),
			FactoryABI:  mustParseABI(v0FactoryABI),
			TxTypes:     map[string]models.TransactionType{},
		}
		Register(b)
		return b
	})
)

func packVersion(t *testing.T, version int64) []byte {
	t.Helper()
	out, err := versionProbeABI.Methods["publicLockVersion"].Outputs.Pack(big.NewInt(version))
	if err != nil {
		t.Fatalf("failed to pack version: %v", err)
	}
	return out
}

func TestResolveByBytecode(t *testing.T) {
	want := registerSynth()
	transport := &probeTransport{code: synthCode, callErr: errors.New("execution reverted")}
	r := NewRegistry(transport)

	b, err := r.Resolve(context.Background(), testLockAddr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if b != want {
		t.Errorf("expected the v99 bundle, got v%d", b.Version)
	}
}

func TestResolveByVersionAccessor(t *testing.T) {
	// Bytecode matches nothing; the contract self-reports revision 10
	transport := &probeTransport{
		code:    []byte{0xaa, 0xbb},
		callOut: packVersion(t, 10),
	}
	r := NewRegistry(transport)

	b, err := r.Resolve(context.Background(), testLockAddr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if b.Version != 10 {
		t.Errorf("expected v10, got v%d", b.Version)
	}
	if b.KeyIdentity != TokenKeyed {
		t.Error("expected v10 to be token-keyed")
	}
}

func TestResolveNotDeployed(t *testing.T) {
	transport := &probeTransport{code: nil}
	r := NewRegistry(transport)

	_, err := r.Resolve(context.Background(), testLockAddr)
	if !errors.Is(err, ErrNotDeployed) {
		t.Errorf("expected ErrNotDeployed, got %v", err)
	}
}

func TestResolveUnknownVersion(t *testing.T) {
	// Unrecognized bytecode and the accessor reverts, as old third-party
	// contracts do
	transport := &probeTransport{
		code:    []byte{0xaa, 0xbb},
		callErr: errors.New("execution reverted"),
	}
	r := NewRegistry(transport)

	_, err := r.Resolve(context.Background(), testLockAddr)
	if !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("expected ErrUnknownVersion, got %v", err)
	}

	// An unreported revision number fails the same way
	transport = &probeTransport{
		code:    []byte{0xaa, 0xbb},
		callOut: packVersion(t, 7),
	}
	r = NewRegistry(transport)
	if _, err := r.Resolve(context.Background(), testLockAddr); !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("expected ErrUnknownVersion for unregistered v7, got %v", err)
	}
}

func TestResolveCaches(t *testing.T) {
	transport := &probeTransport{
		code:    []byte{0xaa, 0xbb},
		callOut: packVersion(t, 10),
	}
	r := NewRegistry(transport)

	first, err := r.Resolve(context.Background(), testLockAddr)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// Break the transport: a cached address must not touch the chain again
	transport.codeErr = errors.New("node down")
	second, err := r.Resolve(context.Background(), testLockAddr)
	if err != nil {
		t.Fatalf("cached Resolve failed: %v", err)
	}
	if first != second {
		t.Error("cache handed out a different instance")
	}
	if transport.codeCalls.Load() != 1 {
		t.Errorf("expected 1 code fetch, got %d", transport.codeCalls.Load())
	}
}

func TestConcurrentResolveConverges(t *testing.T) {
	transport := &probeTransport{
		code:    []byte{0xaa, 0xbb},
		callOut: packVersion(t, 11),
	}
	r := NewRegistry(transport)

	const n = 16
	results := make([]*Binding, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := r.Resolve(context.Background(), testLockAddr)
			if err != nil {
				t.Errorf("Resolve failed: %v", err)
				return
			}
			results[i] = b
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatal("racing resolutions produced distinct instances")
		}
	}
}

func TestResolveWithVersion(t *testing.T) {
	r := NewRegistry(&probeTransport{})

	b, err := r.ResolveWithVersion(testLockAddr, 0)
	if err != nil {
		t.Fatalf("ResolveWithVersion failed: %v", err)
	}
	if b.Version != 0 {
		t.Errorf("expected v0, got v%d", b.Version)
	}

	if _, err := r.ResolveWithVersion(testLockAddr, 7); !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("expected ErrUnknownVersion for v7, got %v", err)
	}
}

func TestTransactionTypeClassification(t *testing.T) {
	b, _ := ByVersion(0)

	price := big.NewInt(1)
	createData, err := b.FactoryABI.Pack("createLock", big.NewInt(60), price, big.NewInt(10))
	if err != nil {
		t.Fatalf("failed to pack createLock: %v", err)
	}
	if got := b.TransactionType(createData); got != models.TypeLockCreation {
		t.Errorf("expected %s, got %s", models.TypeLockCreation, got)
	}

	purchaseData, err := b.LockABI.Pack("purchaseFor", testLockAddr, []byte{})
	if err != nil {
		t.Fatalf("failed to pack purchaseFor: %v", err)
	}
	if got := b.TransactionType(purchaseData); got != models.TypeKeyPurchase {
		t.Errorf("expected %s, got %s", models.TypeKeyPurchase, got)
	}

	if got := b.TransactionType([]byte{0xde, 0xad, 0xbe, 0xef}); got != models.TypeUnknown {
		t.Errorf("expected %s for foreign selector, got %s", models.TypeUnknown, got)
	}
}
