package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swapEngine/internal/chain"
)

// PairReader serves live pair reserves over JSON-RPC.
type PairReader struct {
	client      *chain.Client
	blockNumber uint64
}

// NewPairReader reads reserves at blockNumber, or at the latest block when
// blockNumber is zero.
func NewPairReader(client *chain.Client, blockNumber uint64) *PairReader {
	return &PairReader{client: client, blockNumber: blockNumber}
}

// Reserves returns the canonical reserves reported by getReserves().
func (r *PairReader) Reserves(ctx context.Context, pair common.Address) (*uint256.Int, *uint256.Int, error) {
	reserves, err := FetchPoolReserves(ctx, r.client, pair, r.blockNumber)
	if err != nil {
		return nil, nil, err
	}
	reserve0, err := parseUint256(reserves.Reserve0)
	if err != nil {
		return nil, nil, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := parseUint256(reserves.Reserve1)
	if err != nil {
		return nil, nil, fmt.Errorf("reserve1: %w", err)
	}
	return reserve0, reserve1, nil
}

func parseUint256(value string) (*uint256.Int, error) {
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer %q", value)
	}
	out, overflow := uint256.FromBig(n)
	if overflow {
		return nil, fmt.Errorf("integer %q overflows 256 bits", value)
	}
	return out, nil
}
