package pathmath

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swapEngine/internal/amm"
	"swapEngine/internal/pricemath"
	"swapEngine/internal/registry"
)

const (
	feeScale      = 1000
	feeMultiplier = 997
)

// ReserveSource reports the canonical reserves of a pool by address.
type ReserveSource interface {
	Reserves(ctx context.Context, pool common.Address) (*uint256.Int, *uint256.Int, error)
}

// Locator derives pool addresses the way the registry at Factory does.
type Locator struct {
	Factory      common.Address
	InitCodeHash common.Hash
}

func (l Locator) PoolAddress(a, b common.Address) (common.Address, error) {
	return registry.PoolAddress(l.Factory, l.InitCodeHash, a, b)
}

// Quote returns the amount of B worth amountA at the current reserve ratio.
func Quote(amountA, reserveA, reserveB *uint256.Int) (*uint256.Int, error) {
	if amountA.IsZero() {
		return nil, amm.ErrInsufficientAmount
	}
	if reserveA.IsZero() || reserveB.IsZero() {
		return nil, amm.ErrInsufficientLiquidity
	}
	product, err := pricemath.Mul(amountA, reserveB)
	if err != nil {
		return nil, err
	}
	return product.Div(product, reserveA), nil
}

// AmountOut is the most a pool pays for amountIn after the 0.3% fee.
func AmountOut(amountIn, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountIn.IsZero() {
		return nil, amm.ErrInsufficientInputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return nil, amm.ErrInsufficientLiquidity
	}
	amountInWithFee, err := pricemath.MulUint64(amountIn, feeMultiplier)
	if err != nil {
		return nil, err
	}
	numerator, err := pricemath.Mul(amountInWithFee, reserveOut)
	if err != nil {
		return nil, err
	}
	denominator, err := pricemath.MulUint64(reserveIn, feeScale)
	if err != nil {
		return nil, err
	}
	if denominator, err = pricemath.Add(denominator, amountInWithFee); err != nil {
		return nil, err
	}
	return numerator.Div(numerator, denominator), nil
}

// AmountIn is the least a pool accepts for amountOut. It rounds up so the
// pool is never underpaid.
func AmountIn(amountOut, reserveIn, reserveOut *uint256.Int) (*uint256.Int, error) {
	if amountOut.IsZero() {
		return nil, amm.ErrInsufficientOutputAmount
	}
	if reserveIn.IsZero() || reserveOut.IsZero() || !amountOut.Lt(reserveOut) {
		return nil, amm.ErrInsufficientLiquidity
	}
	numerator, err := pricemath.Mul(reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	if numerator, err = pricemath.MulUint64(numerator, feeScale); err != nil {
		return nil, err
	}
	denominator, err := pricemath.MulUint64(new(uint256.Int).Sub(reserveOut, amountOut), feeMultiplier)
	if err != nil {
		return nil, err
	}
	return pricemath.Add(numerator.Div(numerator, denominator), uint256.NewInt(1))
}

// ReservesFor returns the reserves of the a/b pool ordered as (a, b).
func ReservesFor(ctx context.Context, src ReserveSource, loc Locator, a, b common.Address) (*uint256.Int, *uint256.Int, error) {
	token0, _, err := registry.SortAssets(a, b)
	if err != nil {
		return nil, nil, err
	}
	addr, err := loc.PoolAddress(a, b)
	if err != nil {
		return nil, nil, err
	}
	reserve0, reserve1, err := src.Reserves(ctx, addr)
	if err != nil {
		return nil, nil, fmt.Errorf("reserves %s: %w", addr.Hex(), err)
	}
	if a == token0 {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// AmountsOut propagates amountIn forward along path. The result has one
// entry per asset, starting with amountIn.
func AmountsOut(ctx context.Context, src ReserveSource, loc Locator, amountIn *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, amm.ErrInvalidPath
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[0] = amountIn.Clone()
	for i := 0; i < len(path)-1; i++ {
		reserveIn, reserveOut, err := ReservesFor(ctx, src, loc, path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		if amounts[i+1], err = AmountOut(amounts[i], reserveIn, reserveOut); err != nil {
			return nil, fmt.Errorf("hop %d: %w", i, err)
		}
	}
	return amounts, nil
}

// AmountsIn propagates amountOut backward along path. The last entry is
// amountOut.
func AmountsIn(ctx context.Context, src ReserveSource, loc Locator, amountOut *uint256.Int, path []common.Address) ([]*uint256.Int, error) {
	if len(path) < 2 {
		return nil, amm.ErrInvalidPath
	}
	amounts := make([]*uint256.Int, len(path))
	amounts[len(amounts)-1] = amountOut.Clone()
	for i := len(path) - 1; i > 0; i-- {
		reserveIn, reserveOut, err := ReservesFor(ctx, src, loc, path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		if amounts[i-1], err = AmountIn(amounts[i], reserveIn, reserveOut); err != nil {
			return nil, fmt.Errorf("hop %d: %w", i-1, err)
		}
	}
	return amounts, nil
}
