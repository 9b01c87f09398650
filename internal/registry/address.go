package registry

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"swapEngine/internal/amm"
)

// DefaultInitCodeHash is the keccak256 of the Uniswap V2 pair creation code.
var DefaultInitCodeHash = common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")

// SortAssets returns a and b in canonical order, lower address first.
func SortAssets(a, b common.Address) (common.Address, common.Address, error) {
	if a == b {
		return common.Address{}, common.Address{}, amm.ErrIdenticalAssets
	}
	token0, token1 := a, b
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		token0, token1 = b, a
	}
	if token0 == (common.Address{}) {
		return common.Address{}, common.Address{}, amm.ErrZeroAddress
	}
	return token0, token1, nil
}

// PoolAddress derives the pool of an unordered pair without any lookup:
// CREATE2(factory, keccak256(token0 ++ token1), initCodeHash).
func PoolAddress(factory common.Address, initCodeHash common.Hash, a, b common.Address) (common.Address, error) {
	token0, token1, err := SortAssets(a, b)
	if err != nil {
		return common.Address{}, err
	}
	salt := crypto.Keccak256Hash(token0.Bytes(), token1.Bytes())
	return crypto.CreateAddress2(factory, salt, initCodeHash.Bytes()), nil
}
