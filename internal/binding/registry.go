package binding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"locksync/internal/chain"
	"locksync/internal/metrics"
)

var (
	// ErrUnknownVersion means the deployed bytecode matched no registered
	// binding and the version accessor probe did not help either. Fatal for
	// that address; never retried automatically.
	ErrUnknownVersion = errors.New("unknown contract version")

	// ErrNotDeployed means no bytecode lives at the address
	ErrNotDeployed = errors.New("no contract deployed at address")
)

// versionProbeABI is the well-known accessor newer lock revisions expose
var versionProbeABI = mustParseABI(`[
	{"type":"function","name":"publicLockVersion","constant":true,"inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`)

// Registry resolves contract addresses to binding bundles and memoizes the
// result for the process lifetime; contracts never change version after
// deployment. Safe for concurrent use: two racing resolutions of the same
// address converge on the same shared binding instance.
type Registry struct {
	transport chain.Transport

	mu    sync.RWMutex
	cache map[common.Address]*Binding
}

// NewRegistry creates a registry probing through the given transport
func NewRegistry(t chain.Transport) *Registry {
	return &Registry{
		transport: t,
		cache:     make(map[common.Address]*Binding),
	}
}

// Resolve returns the binding for a contract address, probing the chain on
// first use. Lookup is O(1) once cached.
func (r *Registry) Resolve(ctx context.Context, address common.Address) (*Binding, error) {
	r.mu.RLock()
	b, ok := r.cache[address]
	r.mu.RUnlock()
	if ok {
		return b, nil
	}

	b, err := r.probe(ctx, address)
	if err != nil {
		return nil, err
	}

	return r.store(address, b), nil
}

// ResolveWithVersion pins an address to an explicitly supplied revision,
// bypassing the bytecode probe
func (r *Registry) ResolveWithVersion(address common.Address, version int) (*Binding, error) {
	b, ok := ByVersion(version)
	if !ok {
		return nil, fmt.Errorf("%w: no binding registered for v%d", ErrUnknownVersion, version)
	}
	return r.store(address, b), nil
}

// store caches idempotently: the first writer wins, so concurrent
// resolutions hand every caller the identical instance
func (r *Registry) store(address common.Address, b *Binding) *Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.cache[address]; ok {
		return existing
	}
	r.cache[address] = b
	metrics.BindingResolutions.WithLabelValues(fmt.Sprintf("v%d", b.Version)).Inc()
	return b
}

func (r *Registry) probe(ctx context.Context, address common.Address) (*Binding, error) {
	code, err := r.transport.CodeAt(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read code at %s: %w", address.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployed, address.Hex())
	}

	codeHash := crypto.Keccak256Hash(code)
	if b, ok := byDeployedCode(codeHash); ok {
		slog.Debug("Resolved binding by bytecode",
			"address", address.Hex(),
			"version", b.Version,
		)
		return b, nil
	}

	// Unrecognized bytecode: ask the contract itself. Old revisions lack
	// the accessor and revert, which ends the probe.
	version, err := r.probeVersionAccessor(ctx, address)
	if err != nil {
		metrics.UnknownVersions.Inc()
		return nil, fmt.Errorf("%w: %s (code hash %s)", ErrUnknownVersion, address.Hex(), codeHash.Hex())
	}

	b, ok := ByVersion(version)
	if !ok {
		metrics.UnknownVersions.Inc()
		return nil, fmt.Errorf("%w: %s reports v%d", ErrUnknownVersion, address.Hex(), version)
	}

	slog.Debug("Resolved binding by version accessor",
		"address", address.Hex(),
		"version", version,
	)
	return b, nil
}

func (r *Registry) probeVersionAccessor(ctx context.Context, address common.Address) (int, error) {
	data, err := versionProbeABI.Pack("publicLockVersion")
	if err != nil {
		return 0, err
	}
	out, err := r.transport.CallContract(ctx, address, data)
	if err != nil {
		return 0, err
	}
	values, err := versionProbeABI.Methods["publicLockVersion"].Outputs.Unpack(out)
	if err != nil {
		return 0, err
	}
	version, ok := values[0].(*big.Int)
	if !ok || !version.IsInt64() {
		return 0, fmt.Errorf("unexpected publicLockVersion result %v", values[0])
	}
	return int(version.Int64()), nil
}
