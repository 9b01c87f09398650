package asset

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Asset is a fungible token the pool holds in custody.
//
// Transfer and TransferFrom return the raw call result. A nil error with
// empty return data counts as success, otherwise the data must decode to
// a true boolean.
type Asset interface {
	Address() common.Address
	BalanceOf(holder common.Address) *uint256.Int
	Transfer(caller, to common.Address, amount *uint256.Int) ([]byte, error)
	TransferFrom(caller, from, to common.Address, amount *uint256.Int) ([]byte, error)
}

// ShareLedger tracks the liquidity shares of a single pool. Only the pool
// mints and burns; anyone holding shares may transfer them.
type ShareLedger interface {
	Mint(to common.Address, amount *uint256.Int) error
	Burn(from common.Address, amount *uint256.Int) error
	BalanceOf(holder common.Address) *uint256.Int
	TotalSupply() *uint256.Int
	Transfer(caller, to common.Address, amount *uint256.Int) error
	TransferFrom(caller, from, to common.Address, amount *uint256.Int) error
}

// Resolver binds addresses to live assets and share ledgers.
type Resolver interface {
	Asset(addr common.Address) (Asset, error)
	Shares(pool common.Address) (ShareLedger, error)
}
