package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// EncodeSwap builds a pair Swap log.
func EncodeSwap(pair, sender common.Address, amount0In, amount1In, amount0Out, amount1Out *uint256.Int, to common.Address) (*types.Log, error) {
	parsed, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	return encodeEvent(parsed, "Swap", pair,
		[]common.Hash{AddressTopic(sender), AddressTopic(to)},
		amount0In.ToBig(), amount1In.ToBig(), amount0Out.ToBig(), amount1Out.ToBig(),
	)
}

// EncodeMint builds a pair Mint log.
func EncodeMint(pair, sender common.Address, amount0, amount1 *uint256.Int) (*types.Log, error) {
	parsed, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	return encodeEvent(parsed, "Mint", pair,
		[]common.Hash{AddressTopic(sender)},
		amount0.ToBig(), amount1.ToBig(),
	)
}

// EncodeBurn builds a pair Burn log.
func EncodeBurn(pair, sender common.Address, amount0, amount1 *uint256.Int, to common.Address) (*types.Log, error) {
	parsed, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	return encodeEvent(parsed, "Burn", pair,
		[]common.Hash{AddressTopic(sender), AddressTopic(to)},
		amount0.ToBig(), amount1.ToBig(),
	)
}

// EncodeSync builds a pair Sync log.
func EncodeSync(pair common.Address, reserve0, reserve1 *uint256.Int) (*types.Log, error) {
	parsed, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	return encodeEvent(parsed, "Sync", pair, nil, reserve0.ToBig(), reserve1.ToBig())
}

// EncodePairCreated builds a factory PairCreated log.
func EncodePairCreated(factory, token0, token1, pair common.Address, allPairsLength uint64) (*types.Log, error) {
	parsed, err := V2FactoryABI()
	if err != nil {
		return nil, err
	}
	return encodeEvent(parsed, "PairCreated", factory,
		[]common.Hash{AddressTopic(token0), AddressTopic(token1)},
		pair, new(big.Int).SetUint64(allPairsLength),
	)
}

// EncodeTransfer builds an ERC20 Transfer log.
func EncodeTransfer(token, from, to common.Address, value *uint256.Int) (*types.Log, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return encodeEvent(parsed, "Transfer", token,
		[]common.Hash{AddressTopic(from), AddressTopic(to)},
		value.ToBig(),
	)
}

// EncodeApproval builds an ERC20 Approval log.
func EncodeApproval(token, owner, spender common.Address, value *uint256.Int) (*types.Log, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, err
	}
	return encodeEvent(parsed, "Approval", token,
		[]common.Hash{AddressTopic(owner), AddressTopic(spender)},
		value.ToBig(),
	)
}

// AddressTopic left-pads an address into an indexed topic.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func encodeEvent(parsed abi.ABI, name string, address common.Address, indexed []common.Hash, values ...interface{}) (*types.Log, error) {
	event, ok := parsed.Events[name]
	if !ok {
		return nil, fmt.Errorf("unknown event: %s", name)
	}
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", name, err)
	}
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, event.ID)
	topics = append(topics, indexed...)
	return &types.Log{
		Address: address,
		Topics:  topics,
		Data:    data,
	}, nil
}
