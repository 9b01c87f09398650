package aggregate

import (
	"fmt"
	"math/big"

	"swapEngine/internal/model"
)

// Pairs charge 3 per 1000 of every input amount.
const (
	feeNumerator   = 3
	feeDenominator = 1000
)

// Accumulator holds aggregate values for a pair window.
type Accumulator struct {
	ChainID     uint64
	PoolAddress string
	PoolMeta    model.PoolMeta
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	MintCount   uint64
	BurnCount   uint64
	SyncCount   uint64
	Volume0     *big.Int
	Volume1     *big.Int
	Fee0        *big.Int
	Fee1        *big.Int
	// Reserve0 and Reserve1 hold the last Sync seen in the window, nil when
	// the window had none.
	Reserve0   *big.Int
	Reserve1   *big.Int
	LastBlock  uint64
	LastTS     uint64
	FirstBlock uint64

	lastSyncBlock uint64
	lastSyncIndex uint64
}

func NewAccumulator(record model.TypedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:     record.ChainID,
		PoolAddress: record.Address,
		PoolMeta:    record.PoolMeta,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Volume0:     big.NewInt(0),
		Volume1:     big.NewInt(0),
		Fee0:        big.NewInt(0),
		Fee1:        big.NewInt(0),
		LastBlock:   record.BlockNumber,
		LastTS:      record.Timestamp,
		FirstBlock:  record.BlockNumber,
	}
}

func (a *Accumulator) AddEvent(record model.TypedEventRecord) error {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
		a.LastBlock = record.BlockNumber
	}
	if a.FirstBlock == 0 || record.BlockNumber < a.FirstBlock {
		a.FirstBlock = record.BlockNumber
	}
	if a.PoolMeta.Token0 == "" && record.PoolMeta.Token0 != "" {
		a.PoolMeta = record.PoolMeta
	}

	switch record.EventName {
	case model.EventSwap:
		swap, err := record.Swap()
		if err != nil {
			return err
		}
		return a.applySwap(swap)
	case model.EventSync:
		sync, err := record.Sync()
		if err != nil {
			return err
		}
		return a.applySync(sync, record.BlockNumber, record.LogIndex)
	case model.EventMint:
		a.MintCount++
	case model.EventBurn:
		a.BurnCount++
	}
	return nil
}

// applySwap adds both legs of a swap to the volume and charges the fee on
// the input legs only.
func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	amounts := make([]*big.Int, 0, 4)
	for _, raw := range []string{swap.Amount0In, swap.Amount1In, swap.Amount0Out, swap.Amount1Out} {
		v, err := parseBigInt(raw)
		if err != nil {
			return err
		}
		amounts = append(amounts, v)
	}
	in0, in1, out0, out1 := amounts[0], amounts[1], amounts[2], amounts[3]

	a.Volume0.Add(a.Volume0, in0)
	a.Volume0.Add(a.Volume0, out0)
	a.Volume1.Add(a.Volume1, in1)
	a.Volume1.Add(a.Volume1, out1)
	a.Fee0.Add(a.Fee0, feeFromAmount(in0))
	a.Fee1.Add(a.Fee1, feeFromAmount(in1))
	a.SwapCount++
	return nil
}

func (a *Accumulator) applySync(sync model.SyncEventData, block, logIndex uint64) error {
	reserve0, err := parseBigInt(sync.Reserve0)
	if err != nil {
		return err
	}
	reserve1, err := parseBigInt(sync.Reserve1)
	if err != nil {
		return err
	}
	a.SyncCount++
	if a.Reserve0 != nil && (block < a.lastSyncBlock || (block == a.lastSyncBlock && logIndex < a.lastSyncIndex)) {
		return nil
	}
	a.Reserve0, a.Reserve1 = reserve0, reserve1
	a.lastSyncBlock, a.lastSyncIndex = block, logIndex
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", value)
	}
	return parsed, nil
}

func feeFromAmount(amountIn *big.Int) *big.Int {
	if amountIn == nil {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amountIn, big.NewInt(feeNumerator))
	return fee.Div(fee, big.NewInt(feeDenominator))
}
