package pricemath

import (
	"math/big"

	"github.com/holiman/uint256"

	"swapEngine/internal/amm"
)

// MaxUint112 is the largest value a reserve may hold.
var MaxUint112 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 112), uint256.NewInt(1))

// FitsUint112 reports whether x can be stored as a reserve.
func FitsUint112(x *uint256.Int) bool {
	return !x.Gt(MaxUint112)
}

// Sqrt returns floor(sqrt(y)).
func Sqrt(y *uint256.Int) *uint256.Int {
	if y.IsZero() {
		return new(uint256.Int)
	}
	root := new(big.Int).Sqrt(y.ToBig())
	out, _ := uint256.FromBig(root)
	return out
}

// Min returns a copy of the smaller value.
func Min(x, y *uint256.Int) *uint256.Int {
	if x.Lt(y) {
		return x.Clone()
	}
	return y.Clone()
}

// Add returns x+y or amm.ErrOverflow.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, amm.ErrOverflow
	}
	return z, nil
}

// Sub returns x-y or amm.ErrOverflow when y > x.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(x, y)
	if underflow {
		return nil, amm.ErrOverflow
	}
	return z, nil
}

// Mul returns x*y or amm.ErrOverflow.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, amm.ErrOverflow
	}
	return z, nil
}

// MulUint64 is Mul with a small constant factor.
func MulUint64(x *uint256.Int, y uint64) (*uint256.Int, error) {
	return Mul(x, uint256.NewInt(y))
}

// SubFloor returns x-y, or zero when y > x.
func SubFloor(x, y *uint256.Int) *uint256.Int {
	if y.Gt(x) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(x, y)
}
