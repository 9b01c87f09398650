package router

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapEngine/internal/amm"
	"swapEngine/internal/asset"
	"swapEngine/internal/pathmath"
	"swapEngine/internal/pool"
	"swapEngine/internal/registry"
)

// Router runs multi-step liquidity and swap flows against a registry.
// Every flow is atomic: a failure in any step undoes all of them.
type Router struct {
	address  common.Address
	registry *registry.Registry
	env      pool.Env
	resolver asset.Resolver
	logger   *zap.Logger
}

type AddLiquidityParams struct {
	TokenA         common.Address
	TokenB         common.Address
	AmountADesired *uint256.Int
	AmountBDesired *uint256.Int
	AmountAMin     *uint256.Int
	AmountBMin     *uint256.Int
	To             common.Address
	Deadline       uint64
}

type AddLiquidityResult struct {
	Pool      common.Address
	AmountA   *uint256.Int
	AmountB   *uint256.Int
	Liquidity *uint256.Int
}

type RemoveLiquidityParams struct {
	TokenA     common.Address
	TokenB     common.Address
	Liquidity  *uint256.Int
	AmountAMin *uint256.Int
	AmountBMin *uint256.Int
	To         common.Address
	Deadline   uint64
}

type RemoveLiquidityResult struct {
	AmountA *uint256.Int
	AmountB *uint256.Int
}

type SwapExactInParams struct {
	AmountIn     *uint256.Int
	AmountOutMin *uint256.Int
	Path         []common.Address
	To           common.Address
	Deadline     uint64
}

type SwapExactOutParams struct {
	AmountOut   *uint256.Int
	AmountInMax *uint256.Int
	Path        []common.Address
	To          common.Address
	Deadline    uint64
}

// New creates a router at address. Callers approve address to spend their
// tokens and shares.
func New(address common.Address, reg *registry.Registry, env pool.Env, resolver asset.Resolver, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		address:  address,
		registry: reg,
		env:      env,
		resolver: resolver,
		logger:   logger,
	}
}

func (r *Router) Address() common.Address {
	return r.address
}

func (r *Router) locator() pathmath.Locator {
	return pathmath.Locator{Factory: r.registry.Address(), InitCodeHash: r.registry.InitCodeHash()}
}

func (r *Router) ensure(deadline uint64) error {
	if r.env.Now() > deadline {
		return amm.ErrExpired
	}
	return nil
}

// AddLiquidity deposits at the pool's current ratio, creating the pool
// when it does not exist yet.
func (r *Router) AddLiquidity(ctx context.Context, caller common.Address, p AddLiquidityParams) (AddLiquidityResult, error) {
	var res AddLiquidityResult
	err := pool.Atomic(r.env, func() error {
		if err := r.ensure(p.Deadline); err != nil {
			return err
		}
		if isZero(p.AmountADesired) || isZero(p.AmountBDesired) {
			return amm.ErrInsufficientAmount
		}
		target, ok := r.registry.Pool(p.TokenA, p.TokenB)
		if !ok {
			var err error
			if target, err = r.registry.CreatePool(p.TokenA, p.TokenB); err != nil {
				return err
			}
		}
		amountA, amountB, err := r.liquidityAmounts(ctx, p)
		if err != nil {
			return err
		}

		if err := r.pull(p.TokenA, caller, target.Address(), amountA); err != nil {
			return err
		}
		if err := r.pull(p.TokenB, caller, target.Address(), amountB); err != nil {
			return err
		}
		liquidity, err := target.Mint(r.address, p.To)
		if err != nil {
			return err
		}
		res = AddLiquidityResult{Pool: target.Address(), AmountA: amountA, AmountB: amountB, Liquidity: liquidity}
		return nil
	})
	if err != nil {
		return AddLiquidityResult{}, fmt.Errorf("add liquidity: %w", err)
	}
	r.logger.Debug("liquidity added",
		zap.String("pool", res.Pool.Hex()),
		zap.String("amount_a", res.AmountA.ToBig().String()),
		zap.String("amount_b", res.AmountB.ToBig().String()),
		zap.String("liquidity", res.Liquidity.ToBig().String()),
	)
	return res, nil
}

func (r *Router) liquidityAmounts(ctx context.Context, p AddLiquidityParams) (*uint256.Int, *uint256.Int, error) {
	reserveA, reserveB, err := pathmath.ReservesFor(ctx, r.registry, r.locator(), p.TokenA, p.TokenB)
	if err != nil {
		return nil, nil, err
	}
	if reserveA.IsZero() && reserveB.IsZero() {
		return p.AmountADesired.Clone(), p.AmountBDesired.Clone(), nil
	}
	optimalB, err := pathmath.Quote(p.AmountADesired, reserveA, reserveB)
	if err != nil {
		return nil, nil, err
	}
	if !optimalB.Gt(p.AmountBDesired) {
		if optimalB.Lt(orZero(p.AmountBMin)) {
			return nil, nil, amm.ErrInsufficientBAmount
		}
		return p.AmountADesired.Clone(), optimalB, nil
	}
	optimalA, err := pathmath.Quote(p.AmountBDesired, reserveB, reserveA)
	if err != nil {
		return nil, nil, err
	}
	if optimalA.Gt(p.AmountADesired) || optimalA.Lt(orZero(p.AmountAMin)) {
		return nil, nil, amm.ErrInsufficientAAmount
	}
	return optimalA, p.AmountBDesired.Clone(), nil
}

// RemoveLiquidity redeems liquidity shares of the tokenA/tokenB pool. The
// amounts are reported in the caller's token order.
func (r *Router) RemoveLiquidity(_ context.Context, caller common.Address, p RemoveLiquidityParams) (RemoveLiquidityResult, error) {
	var res RemoveLiquidityResult
	err := pool.Atomic(r.env, func() error {
		if err := r.ensure(p.Deadline); err != nil {
			return err
		}
		target, ok := r.registry.Pool(p.TokenA, p.TokenB)
		if !ok {
			return amm.ErrPoolNotFound
		}
		if err := target.Shares().TransferFrom(r.address, caller, target.Address(), orZero(p.Liquidity)); err != nil {
			return fmt.Errorf("pull shares: %w", err)
		}
		amount0, amount1, err := target.Burn(r.address, p.To)
		if err != nil {
			return err
		}
		amountA, amountB := amount0, amount1
		if p.TokenA != target.Token0() {
			amountA, amountB = amount1, amount0
		}
		if amountA.Lt(orZero(p.AmountAMin)) {
			return amm.ErrInsufficientAAmount
		}
		if amountB.Lt(orZero(p.AmountBMin)) {
			return amm.ErrInsufficientBAmount
		}
		res = RemoveLiquidityResult{AmountA: amountA, AmountB: amountB}
		return nil
	})
	if err != nil {
		return RemoveLiquidityResult{}, fmt.Errorf("remove liquidity: %w", err)
	}
	r.logger.Debug("liquidity removed",
		zap.String("amount_a", res.AmountA.ToBig().String()),
		zap.String("amount_b", res.AmountB.ToBig().String()),
	)
	return res, nil
}

// SwapExactIn trades exactly AmountIn of Path[0] for as much of the last
// asset as the path yields.
func (r *Router) SwapExactIn(ctx context.Context, caller common.Address, p SwapExactInParams) ([]*uint256.Int, error) {
	var amounts []*uint256.Int
	err := pool.Atomic(r.env, func() error {
		if err := r.ensure(p.Deadline); err != nil {
			return err
		}
		var err error
		if amounts, err = r.AmountsOut(ctx, orZero(p.AmountIn), p.Path); err != nil {
			return err
		}
		if amounts[len(amounts)-1].Lt(orZero(p.AmountOutMin)) {
			return amm.AsSlippage(amm.ErrInsufficientOutputAmount)
		}
		return r.execute(caller, amounts, p.Path, p.To)
	})
	if err != nil {
		return nil, fmt.Errorf("swap exact in: %w", err)
	}
	r.logSwap(amounts, p.Path)
	return amounts, nil
}

// SwapExactOut trades as little of Path[0] as needed to receive exactly
// AmountOut of the last asset.
func (r *Router) SwapExactOut(ctx context.Context, caller common.Address, p SwapExactOutParams) ([]*uint256.Int, error) {
	var amounts []*uint256.Int
	err := pool.Atomic(r.env, func() error {
		if err := r.ensure(p.Deadline); err != nil {
			return err
		}
		var err error
		if amounts, err = r.AmountsIn(ctx, orZero(p.AmountOut), p.Path); err != nil {
			return err
		}
		if p.AmountInMax != nil && amounts[0].Gt(p.AmountInMax) {
			return amm.ErrExcessiveInputAmount
		}
		return r.execute(caller, amounts, p.Path, p.To)
	})
	if err != nil {
		return nil, fmt.Errorf("swap exact out: %w", err)
	}
	r.logSwap(amounts, p.Path)
	return amounts, nil
}

// execute pays amounts[0] into the first pool and then swaps hop by hop,
// each pool sending its output straight into the next one.
func (r *Router) execute(caller common.Address, amounts []*uint256.Int, path []common.Address, to common.Address) error {
	first, ok := r.registry.Pool(path[0], path[1])
	if !ok {
		return amm.ErrPoolNotFound
	}
	if err := r.pull(path[0], caller, first.Address(), amounts[0]); err != nil {
		return err
	}
	for i := 0; i < len(path)-1; i++ {
		input, output := path[i], path[i+1]
		hop, ok := r.registry.Pool(input, output)
		if !ok {
			return amm.ErrPoolNotFound
		}
		amount0Out, amount1Out := new(uint256.Int), amounts[i+1]
		if input != hop.Token0() {
			amount0Out, amount1Out = amounts[i+1], new(uint256.Int)
		}
		recipient := to
		if i < len(path)-2 {
			next, ok := r.registry.Pool(output, path[i+2])
			if !ok {
				return amm.ErrPoolNotFound
			}
			recipient = next.Address()
		}
		if err := hop.Swap(r.address, amount0Out, amount1Out, recipient); err != nil {
			return fmt.Errorf("hop %d: %w", i, err)
		}
	}
	return nil
}

func (r *Router) pull(token, from, to common.Address, amount *uint256.Int) error {
	a, err := r.resolver.Asset(token)
	if err != nil {
		return err
	}
	return asset.SafeTransferFrom(a, r.address, from, to, amount)
}

func (r *Router) logSwap(amounts []*uint256.Int, path []common.Address) {
	r.logger.Debug("swap executed",
		zap.String("token_in", path[0].Hex()),
		zap.String("token_out", path[len(path)-1].Hex()),
		zap.String("amount_in", amounts[0].ToBig().String()),
		zap.String("amount_out", amounts[len(amounts)-1].ToBig().String()),
		zap.Int("hops", len(path)-1),
	)
}

// Quote returns the amount of tokenB matching amountA at the pool's ratio.
func (r *Router) Quote(ctx context.Context, amountA *uint256.Int, tokenA, tokenB common.Address) (*uint256.Int, error) {
	reserveA, reserveB, err := pathmath.ReservesFor(ctx, r.registry, r.locator(), tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	return pathmath.Quote(amountA, reserveA, reserveB)
}

func (r *Router) AmountsOut(ctx context.Context, amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	return pathmath.AmountsOut(ctx, r.registry, r.locator(), amountIn, path)
}

func (r *Router) AmountsIn(ctx context.Context, amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	return pathmath.AmountsIn(ctx, r.registry, r.locator(), amountOut, path)
}

func isZero(x *uint256.Int) bool {
	return x == nil || x.IsZero()
}

func orZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}
