package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapEngine/internal/amm"
	"swapEngine/internal/asset"
	"swapEngine/internal/dex"
	"swapEngine/internal/pool"
)

// Registry maps unordered asset pairs to exactly one pool.
type Registry struct {
	address      common.Address
	initCodeHash common.Hash
	env          pool.Env
	resolver     asset.Resolver
	logger       *zap.Logger

	mu        sync.RWMutex
	pairs     map[common.Address]map[common.Address]*pool.Pool
	byAddress map[common.Address]*pool.Pool
	all       []*pool.Pool
}

// Option configures a Registry.
type Option func(*Registry)

// WithInitCodeHash overrides the creation template hash used for derivation.
func WithInitCodeHash(hash common.Hash) Option {
	return func(r *Registry) {
		r.initCodeHash = hash
	}
}

// New creates an empty registry living at address.
func New(address common.Address, env pool.Env, resolver asset.Resolver, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		address:      address,
		initCodeHash: DefaultInitCodeHash,
		env:          env,
		resolver:     resolver,
		logger:       logger,
		pairs:        make(map[common.Address]map[common.Address]*pool.Pool),
		byAddress:    make(map[common.Address]*pool.Pool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Address() common.Address {
	return r.address
}

func (r *Registry) InitCodeHash() common.Hash {
	return r.initCodeHash
}

// PoolAddress derives the address the pool of a and b has or would have.
func (r *Registry) PoolAddress(a, b common.Address) (common.Address, error) {
	return PoolAddress(r.address, r.initCodeHash, a, b)
}

// CreatePool deploys the pool of an unordered pair. A revert of the
// enclosing snapshot removes the pool again.
func (r *Registry) CreatePool(a, b common.Address) (*pool.Pool, error) {
	var created *pool.Pool
	err := pool.Atomic(r.env, func() error {
		var err error
		created, err = r.createPool(a, b)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	r.logger.Info("pool created",
		zap.String("pool", created.Address().Hex()),
		zap.String("token0", created.Token0().Hex()),
		zap.String("token1", created.Token1().Hex()),
	)
	return created, nil
}

func (r *Registry) createPool(a, b common.Address) (*pool.Pool, error) {
	token0, token1, err := SortAssets(a, b)
	if err != nil {
		return nil, err
	}
	if _, ok := r.Pool(token0, token1); ok {
		return nil, amm.ErrPoolExists
	}
	asset0, err := r.resolver.Asset(token0)
	if err != nil {
		return nil, err
	}
	asset1, err := r.resolver.Asset(token1)
	if err != nil {
		return nil, err
	}

	addr, err := PoolAddress(r.address, r.initCodeHash, token0, token1)
	if err != nil {
		return nil, err
	}
	shares, err := r.resolver.Shares(addr)
	if err != nil {
		return nil, err
	}
	p := pool.New(r.env, addr, r.address, asset0, asset1, shares)

	length := r.record(p)
	r.env.Journal(func() { r.forget(p) })

	log, err := dex.EncodePairCreated(r.address, token0, token1, addr, uint64(length))
	if err != nil {
		return nil, err
	}
	r.env.AddLog(log)
	return p, nil
}

func (r *Registry) record(p *pool.Pool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	token0, token1 := p.Token0(), p.Token1()
	if r.pairs[token0] == nil {
		r.pairs[token0] = make(map[common.Address]*pool.Pool)
	}
	if r.pairs[token1] == nil {
		r.pairs[token1] = make(map[common.Address]*pool.Pool)
	}
	r.pairs[token0][token1] = p
	r.pairs[token1][token0] = p
	r.byAddress[p.Address()] = p
	r.all = append(r.all, p)
	return len(r.all)
}

func (r *Registry) forget(p *pool.Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token0, token1 := p.Token0(), p.Token1()
	delete(r.pairs[token0], token1)
	delete(r.pairs[token1], token0)
	delete(r.byAddress, p.Address())
	for i := len(r.all) - 1; i >= 0; i-- {
		if r.all[i] == p {
			r.all = append(r.all[:i], r.all[i+1:]...)
			break
		}
	}
}

// Pool returns the pool of a and b in either order.
func (r *Registry) Pool(a, b common.Address) (*pool.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pairs[a][b]
	return p, ok
}

// PoolAt returns the pool deployed at addr.
func (r *Registry) PoolAt(addr common.Address) (*pool.Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byAddress[addr]
	return p, ok
}

// AllPools returns pools in creation order.
func (r *Registry) AllPools() []*pool.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*pool.Pool, len(r.all))
	copy(out, r.all)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// Reserves returns the canonical reserves of the pool at addr.
func (r *Registry) Reserves(_ context.Context, addr common.Address) (*uint256.Int, *uint256.Int, error) {
	p, ok := r.PoolAt(addr)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", amm.ErrPoolNotFound, addr.Hex())
	}
	reserve0, reserve1, _ := p.Reserves()
	return reserve0, reserve1, nil
}
