package pathmath

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swapEngine/internal/amm"
	"swapEngine/internal/registry"
)

// StaticReserves is a ReserveSource over fixed canonical reserves, keyed by
// pool address.
type StaticReserves map[common.Address][2]*uint256.Int

// Set records the reserves of the a/b pool given in (a, b) order.
func (s StaticReserves) Set(loc Locator, a, b common.Address, reserveA, reserveB *uint256.Int) error {
	token0, _, err := registry.SortAssets(a, b)
	if err != nil {
		return err
	}
	addr, err := loc.PoolAddress(a, b)
	if err != nil {
		return err
	}
	if a == token0 {
		s[addr] = [2]*uint256.Int{reserveA.Clone(), reserveB.Clone()}
	} else {
		s[addr] = [2]*uint256.Int{reserveB.Clone(), reserveA.Clone()}
	}
	return nil
}

func (s StaticReserves) Reserves(_ context.Context, pool common.Address) (*uint256.Int, *uint256.Int, error) {
	r, ok := s[pool]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", amm.ErrPoolNotFound, pool.Hex())
	}
	return r[0].Clone(), r[1].Clone(), nil
}
