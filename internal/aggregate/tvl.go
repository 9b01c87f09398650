package aggregate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"swapEngine/internal/dex"
)

const (
	tvlMethodSync     = "last_sync"
	tvlMethodReserves = "get_reserves_block"
	tvlMethodNone     = "unavailable"
)

// windowTVL returns the pair reserves at the end of the window. The last Sync
// of the window is exact; without one the reserves are read over RPC at the
// window's last block.
func (a *Aggregator) windowTVL(ctx context.Context, acc *Accumulator) (*big.Int, *big.Int, string, error) {
	if acc.Reserve0 != nil && acc.Reserve1 != nil {
		return acc.Reserve0, acc.Reserve1, tvlMethodSync, nil
	}
	if a.chainClient == nil || acc.LastBlock == 0 {
		return nil, nil, tvlMethodNone, nil
	}
	if !common.IsHexAddress(acc.PoolAddress) {
		return nil, nil, tvlMethodNone, fmt.Errorf("invalid pool address: %s", acc.PoolAddress)
	}

	reserves, err := dex.FetchPoolReserves(ctx, a.chainClient, common.HexToAddress(acc.PoolAddress), acc.LastBlock)
	if err != nil {
		return nil, nil, tvlMethodNone, err
	}
	reserve0, err := parseBigInt(reserves.Reserve0)
	if err != nil {
		return nil, nil, tvlMethodNone, err
	}
	reserve1, err := parseBigInt(reserves.Reserve1)
	if err != nil {
		return nil, nil, tvlMethodNone, err
	}
	return reserve0, reserve1, tvlMethodReserves, nil
}
