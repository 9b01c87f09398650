package pricemath

import (
	"errors"
	"math/big"
	"testing"
	"testing/quick"

	"github.com/holiman/uint256"

	"swapEngine/internal/amm"
)

func TestSqrt(t *testing.T) {
	cases := []struct {
		in   uint64
		want uint64
	}{
		{0, 0},
		{1, 1},
		{3, 1},
		{4, 2},
		{15, 3},
		{16, 4},
		{1_000_000, 1000},
		{999_999, 999},
	}
	for _, tc := range cases {
		got := Sqrt(uint256.NewInt(tc.in))
		if got.Uint64() != tc.want {
			t.Fatalf("sqrt(%d) = %d, want %d", tc.in, got.Uint64(), tc.want)
		}
	}
}

func TestSqrtIsFloor(t *testing.T) {
	check := func(a, b uint64) bool {
		y := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
		r := Sqrt(y)
		sq := new(uint256.Int).Mul(r, r)
		next := new(uint256.Int).AddUint64(r, 1)
		nextSq := new(uint256.Int).Mul(next, next)
		return !sq.Gt(y) && nextSq.Gt(y)
	}
	if err := quick.Check(check, nil); err != nil {
		t.Fatalf("floor property: %v", err)
	}
}

func TestCheckedArithmetic(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	if _, err := Add(max, uint256.NewInt(1)); !errors.Is(err, amm.ErrOverflow) {
		t.Fatalf("expected add overflow, got %v", err)
	}
	if _, err := Sub(uint256.NewInt(1), uint256.NewInt(2)); !errors.Is(err, amm.ErrOverflow) {
		t.Fatalf("expected sub underflow, got %v", err)
	}
	if _, err := Mul(max, uint256.NewInt(2)); !errors.Is(err, amm.ErrOverflow) {
		t.Fatalf("expected mul overflow, got %v", err)
	}
	got, err := Mul(uint256.NewInt(6), uint256.NewInt(7))
	if err != nil || got.Uint64() != 42 {
		t.Fatalf("mul mismatch: %v %v", got, err)
	}
	if SubFloor(uint256.NewInt(3), uint256.NewInt(5)).Sign() != 0 {
		t.Fatalf("sub floor must clamp to zero")
	}
}

func TestMaxUint112(t *testing.T) {
	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1))
	if MaxUint112.ToBig().Cmp(want) != 0 {
		t.Fatalf("max uint112 mismatch: %s", MaxUint112.ToBig())
	}
	if !FitsUint112(MaxUint112) {
		t.Fatalf("max uint112 must fit")
	}
	if FitsUint112(new(uint256.Int).AddUint64(MaxUint112, 1)) {
		t.Fatalf("2^112 must not fit")
	}
}

func TestPriceAndAccumulate(t *testing.T) {
	// reserve1/reserve0 = 2 -> 2 << 112
	price := Price(uint256.NewInt(1000), uint256.NewInt(2000))
	want := new(uint256.Int).Lsh(uint256.NewInt(2), 112)
	if !price.Eq(want) {
		t.Fatalf("price mismatch: %s", price.ToBig())
	}

	acc := AccumulatePrice(new(uint256.Int), price, 10)
	if !acc.Eq(new(uint256.Int).Mul(want, uint256.NewInt(10))) {
		t.Fatalf("accumulator mismatch")
	}

	wrapped := AccumulatePrice(new(uint256.Int).SetAllOne(), uint256.NewInt(1), 2)
	if wrapped.Uint64() != 1 {
		t.Fatalf("accumulator must wrap, got %s", wrapped.ToBig())
	}
}
