package pricemath

import "github.com/holiman/uint256"

// Resolution is the number of fractional bits in a UQ112x112 value.
const Resolution = 112

// Encode converts a 112-bit integer into UQ112x112. It never overflows for
// inputs that satisfy FitsUint112.
func Encode(y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Lsh(y, Resolution)
}

// UQDiv divides a UQ112x112 value by an integer. y must be non-zero.
func UQDiv(x, y *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(x, y)
}

// Price returns reserveOut/reserveIn as UQ112x112.
func Price(reserveIn, reserveOut *uint256.Int) *uint256.Int {
	return UQDiv(Encode(reserveOut), reserveIn)
}

// AccumulatePrice adds price*elapsed to cumulative. Both steps wrap
// modulo 2^256.
func AccumulatePrice(cumulative, price *uint256.Int, elapsed uint32) *uint256.Int {
	step := new(uint256.Int).Mul(price, uint256.NewInt(uint64(elapsed)))
	return new(uint256.Int).Add(cumulative, step)
}
