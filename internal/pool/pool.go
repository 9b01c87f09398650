package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swapEngine/internal/amm"
	"swapEngine/internal/asset"
	"swapEngine/internal/dex"
	"swapEngine/internal/pricemath"
)

// MinimumLiquidity is locked at the zero address on the first deposit.
const MinimumLiquidity = 1000

var (
	minimumLiquidity = uint256.NewInt(MinimumLiquidity)
	feeScale         = uint64(1000)
	feeNumerator     = uint64(3)
)

// Pool holds reserves of two assets and enforces the constant-product
// invariant. Callers move funds into the pool before calling Mint or Swap,
// and move shares into the pool before calling Burn.
type Pool struct {
	env     Env
	address common.Address
	factory common.Address
	token0  asset.Asset
	token1  asset.Asset
	shares  asset.ShareLedger

	reserve0             *uint256.Int
	reserve1             *uint256.Int
	blockTimestampLast   uint32
	price0CumulativeLast *uint256.Int
	price1CumulativeLast *uint256.Int
}

// State is a point-in-time copy of a pool.
type State struct {
	Address              common.Address
	Token0               common.Address
	Token1               common.Address
	Reserve0             *uint256.Int
	Reserve1             *uint256.Int
	BlockTimestampLast   uint32
	Price0CumulativeLast *uint256.Int
	Price1CumulativeLast *uint256.Int
	TotalSupply          *uint256.Int
}

type reserves struct {
	reserve0, reserve1 *uint256.Int
	blockTimestampLast uint32
	price0, price1     *uint256.Int
}

// New binds a pool to its assets. token0 must sort before token1.
func New(env Env, address, factory common.Address, token0, token1 asset.Asset, shares asset.ShareLedger) *Pool {
	return &Pool{
		env:                  env,
		address:              address,
		factory:              factory,
		token0:               token0,
		token1:               token1,
		shares:               shares,
		reserve0:             new(uint256.Int),
		reserve1:             new(uint256.Int),
		price0CumulativeLast: new(uint256.Int),
		price1CumulativeLast: new(uint256.Int),
	}
}

func (p *Pool) Address() common.Address {
	return p.address
}

func (p *Pool) Factory() common.Address {
	return p.factory
}

func (p *Pool) Token0() common.Address {
	return p.token0.Address()
}

func (p *Pool) Token1() common.Address {
	return p.token1.Address()
}

func (p *Pool) Shares() asset.ShareLedger {
	return p.shares
}

// Reserves returns copies of the tracked reserves and the last update time.
func (p *Pool) Reserves() (*uint256.Int, *uint256.Int, uint32) {
	return p.reserve0.Clone(), p.reserve1.Clone(), p.blockTimestampLast
}

func (p *Pool) Price0CumulativeLast() *uint256.Int {
	return p.price0CumulativeLast.Clone()
}

func (p *Pool) Price1CumulativeLast() *uint256.Int {
	return p.price1CumulativeLast.Clone()
}

// State returns a copy of the pool.
func (p *Pool) State() State {
	return State{
		Address:              p.address,
		Token0:               p.Token0(),
		Token1:               p.Token1(),
		Reserve0:             p.reserve0.Clone(),
		Reserve1:             p.reserve1.Clone(),
		BlockTimestampLast:   p.blockTimestampLast,
		Price0CumulativeLast: p.price0CumulativeLast.Clone(),
		Price1CumulativeLast: p.price1CumulativeLast.Clone(),
		TotalSupply:          p.shares.TotalSupply(),
	}
}

// Mint credits shares to to for whatever the pool received since the last
// update.
func (p *Pool) Mint(sender, to common.Address) (*uint256.Int, error) {
	var liquidity *uint256.Int
	err := Atomic(p.env, func() error {
		var err error
		liquidity, err = p.mint(sender, to)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	return liquidity, nil
}

// Burn redeems every share the pool holds and pays both assets to to.
func (p *Pool) Burn(sender, to common.Address) (*uint256.Int, *uint256.Int, error) {
	var amount0, amount1 *uint256.Int
	err := Atomic(p.env, func() error {
		var err error
		amount0, amount1, err = p.burn(sender, to)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("burn: %w", err)
	}
	return amount0, amount1, nil
}

// Swap sends the requested outputs to to, then checks that what the pool
// now holds still satisfies the fee-adjusted invariant.
func (p *Pool) Swap(sender common.Address, amount0Out, amount1Out *uint256.Int, to common.Address) error {
	err := Atomic(p.env, func() error {
		return p.swap(sender, amount0Out, amount1Out, to)
	})
	if err != nil {
		return fmt.Errorf("swap: %w", err)
	}
	return nil
}

// Skim pays out any balance above the tracked reserves.
func (p *Pool) Skim(to common.Address) error {
	err := Atomic(p.env, func() error {
		r0, r1 := p.reserve0, p.reserve1
		excess0 := pricemath.SubFloor(p.token0.BalanceOf(p.address), r0)
		excess1 := pricemath.SubFloor(p.token1.BalanceOf(p.address), r1)
		if err := asset.SafeTransfer(p.token0, p.address, to, excess0); err != nil {
			return err
		}
		return asset.SafeTransfer(p.token1, p.address, to, excess1)
	})
	if err != nil {
		return fmt.Errorf("skim: %w", err)
	}
	return nil
}

// Sync sets the reserves to the current balances.
func (p *Pool) Sync() error {
	err := Atomic(p.env, func() error {
		return p.update(p.token0.BalanceOf(p.address), p.token1.BalanceOf(p.address), p.reserve0, p.reserve1)
	})
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

func (p *Pool) mint(sender, to common.Address) (*uint256.Int, error) {
	r0, r1 := p.reserve0.Clone(), p.reserve1.Clone()
	balance0 := p.token0.BalanceOf(p.address)
	balance1 := p.token1.BalanceOf(p.address)

	amount0, err := pricemath.Sub(balance0, r0)
	if err != nil {
		return nil, err
	}
	amount1, err := pricemath.Sub(balance1, r1)
	if err != nil {
		return nil, err
	}

	var liquidity *uint256.Int
	totalSupply := p.shares.TotalSupply()
	if totalSupply.IsZero() {
		product, err := pricemath.Mul(amount0, amount1)
		if err != nil {
			return nil, err
		}
		root := pricemath.Sqrt(product)
		if !root.Gt(minimumLiquidity) {
			return nil, amm.ErrInsufficientLiquidityMinted
		}
		liquidity = new(uint256.Int).Sub(root, minimumLiquidity)
		if err := p.shares.Mint(common.Address{}, minimumLiquidity.Clone()); err != nil {
			return nil, err
		}
	} else {
		if r0.IsZero() || r1.IsZero() {
			return nil, amm.ErrInsufficientLiquidity
		}
		l0, err := pricemath.Mul(amount0, totalSupply)
		if err != nil {
			return nil, err
		}
		l1, err := pricemath.Mul(amount1, totalSupply)
		if err != nil {
			return nil, err
		}
		liquidity = pricemath.Min(l0.Div(l0, r0), l1.Div(l1, r1))
	}
	if liquidity.IsZero() {
		return nil, amm.ErrInsufficientLiquidityMinted
	}
	if err := p.shares.Mint(to, liquidity); err != nil {
		return nil, err
	}

	if err := p.update(balance0, balance1, r0, r1); err != nil {
		return nil, err
	}
	if err := p.emitMint(sender, amount0, amount1); err != nil {
		return nil, err
	}
	return liquidity, nil
}

func (p *Pool) burn(sender, to common.Address) (*uint256.Int, *uint256.Int, error) {
	r0, r1 := p.reserve0.Clone(), p.reserve1.Clone()
	balance0 := p.token0.BalanceOf(p.address)
	balance1 := p.token1.BalanceOf(p.address)
	liquidity := p.shares.BalanceOf(p.address)

	totalSupply := p.shares.TotalSupply()
	if totalSupply.IsZero() {
		return nil, nil, amm.ErrInsufficientLiquidityBurned
	}
	amount0, err := pricemath.Mul(liquidity, balance0)
	if err != nil {
		return nil, nil, err
	}
	amount0.Div(amount0, totalSupply)
	amount1, err := pricemath.Mul(liquidity, balance1)
	if err != nil {
		return nil, nil, err
	}
	amount1.Div(amount1, totalSupply)
	if amount0.IsZero() || amount1.IsZero() {
		return nil, nil, amm.ErrInsufficientLiquidityBurned
	}

	if err := p.shares.Burn(p.address, liquidity); err != nil {
		return nil, nil, err
	}
	if err := asset.SafeTransfer(p.token0, p.address, to, amount0); err != nil {
		return nil, nil, err
	}
	if err := asset.SafeTransfer(p.token1, p.address, to, amount1); err != nil {
		return nil, nil, err
	}

	balance0 = p.token0.BalanceOf(p.address)
	balance1 = p.token1.BalanceOf(p.address)
	if err := p.update(balance0, balance1, r0, r1); err != nil {
		return nil, nil, err
	}
	if err := p.emitBurn(sender, amount0, amount1, to); err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (p *Pool) swap(sender common.Address, amount0Out, amount1Out *uint256.Int, to common.Address) error {
	if amount0Out.IsZero() && amount1Out.IsZero() {
		return amm.ErrInsufficientOutputAmount
	}
	r0, r1 := p.reserve0.Clone(), p.reserve1.Clone()
	if !amount0Out.Lt(r0) || !amount1Out.Lt(r1) {
		return amm.ErrInsufficientLiquidity
	}
	if to == p.Token0() || to == p.Token1() {
		return amm.ErrInvalidTo
	}

	// optimistic transfer; the atomic boundary undoes it if the checks fail
	if !amount0Out.IsZero() {
		if err := asset.SafeTransfer(p.token0, p.address, to, amount0Out); err != nil {
			return err
		}
	}
	if !amount1Out.IsZero() {
		if err := asset.SafeTransfer(p.token1, p.address, to, amount1Out); err != nil {
			return err
		}
	}
	balance0 := p.token0.BalanceOf(p.address)
	balance1 := p.token1.BalanceOf(p.address)

	amount0In := pricemath.SubFloor(balance0, new(uint256.Int).Sub(r0, amount0Out))
	amount1In := pricemath.SubFloor(balance1, new(uint256.Int).Sub(r1, amount1Out))
	if amount0In.IsZero() && amount1In.IsZero() {
		return amm.ErrInsufficientInputAmount
	}

	adjusted0, err := adjustedBalance(balance0, amount0In)
	if err != nil {
		return err
	}
	adjusted1, err := adjustedBalance(balance1, amount1In)
	if err != nil {
		return err
	}
	lhs, err := pricemath.Mul(adjusted0, adjusted1)
	if err != nil {
		return err
	}
	rhs, err := pricemath.Mul(r0, r1)
	if err != nil {
		return err
	}
	rhs, err = pricemath.MulUint64(rhs, feeScale*feeScale)
	if err != nil {
		return err
	}
	if lhs.Lt(rhs) {
		return amm.ErrK
	}

	if err := p.update(balance0, balance1, r0, r1); err != nil {
		return err
	}
	return p.emitSwap(sender, amount0In, amount1In, amount0Out, amount1Out, to)
}

// adjustedBalance is balance*1000 - amountIn*3.
func adjustedBalance(balance, amountIn *uint256.Int) (*uint256.Int, error) {
	scaled, err := pricemath.MulUint64(balance, feeScale)
	if err != nil {
		return nil, err
	}
	fee, err := pricemath.MulUint64(amountIn, feeNumerator)
	if err != nil {
		return nil, err
	}
	return pricemath.Sub(scaled, fee)
}

// update stores new reserves and, on the first call of each second,
// accumulates the prices that held over the elapsed interval.
func (p *Pool) update(balance0, balance1, r0, r1 *uint256.Int) error {
	if !pricemath.FitsUint112(balance0) || !pricemath.FitsUint112(balance1) {
		return amm.ErrOverflow
	}
	now := uint32(p.env.Now())
	elapsed := now - p.blockTimestampLast

	prev := p.saved()
	p.env.Journal(func() { p.restore(prev) })

	if elapsed > 0 && !r0.IsZero() && !r1.IsZero() {
		p.price0CumulativeLast = pricemath.AccumulatePrice(p.price0CumulativeLast, pricemath.Price(r0, r1), elapsed)
		p.price1CumulativeLast = pricemath.AccumulatePrice(p.price1CumulativeLast, pricemath.Price(r1, r0), elapsed)
	}
	p.reserve0 = balance0.Clone()
	p.reserve1 = balance1.Clone()
	p.blockTimestampLast = now

	log, err := dex.EncodeSync(p.address, p.reserve0, p.reserve1)
	if err != nil {
		return err
	}
	p.env.AddLog(log)
	return nil
}

func (p *Pool) saved() reserves {
	return reserves{
		reserve0:           p.reserve0,
		reserve1:           p.reserve1,
		blockTimestampLast: p.blockTimestampLast,
		price0:             p.price0CumulativeLast,
		price1:             p.price1CumulativeLast,
	}
}

func (p *Pool) restore(r reserves) {
	p.reserve0 = r.reserve0
	p.reserve1 = r.reserve1
	p.blockTimestampLast = r.blockTimestampLast
	p.price0CumulativeLast = r.price0
	p.price1CumulativeLast = r.price1
}

func (p *Pool) emitMint(sender common.Address, amount0, amount1 *uint256.Int) error {
	log, err := dex.EncodeMint(p.address, sender, amount0, amount1)
	if err != nil {
		return err
	}
	p.env.AddLog(log)
	return nil
}

func (p *Pool) emitBurn(sender common.Address, amount0, amount1 *uint256.Int, to common.Address) error {
	log, err := dex.EncodeBurn(p.address, sender, amount0, amount1, to)
	if err != nil {
		return err
	}
	p.env.AddLog(log)
	return nil
}

func (p *Pool) emitSwap(sender common.Address, amount0In, amount1In, amount0Out, amount1Out *uint256.Int, to common.Address) error {
	log, err := dex.EncodeSwap(p.address, sender, amount0In, amount1In, amount0Out, amount1Out, to)
	if err != nil {
		return err
	}
	p.env.AddLog(log)
	return nil
}
