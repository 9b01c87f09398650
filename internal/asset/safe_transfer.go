package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swapEngine/internal/amm"
	"swapEngine/internal/dex"
)

// SafeTransfer moves amount from caller to to and enforces the success
// convention.
func SafeTransfer(a Asset, caller, to common.Address, amount *uint256.Int) error {
	ret, err := a.Transfer(caller, to, amount)
	return checkReturn(a, ret, err)
}

// SafeTransferFrom moves amount from from to to on behalf of caller.
func SafeTransferFrom(a Asset, caller, from, to common.Address, amount *uint256.Int) error {
	ret, err := a.TransferFrom(caller, from, to, amount)
	return checkReturn(a, ret, err)
}

func checkReturn(a Asset, ret []byte, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %v", amm.ErrTransferFailed, a.Address().Hex(), err)
	}
	if len(ret) == 0 {
		return nil
	}
	ok, err := dex.DecodeTransferResult(ret)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", amm.ErrTransferFailed, a.Address().Hex(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s returned false", amm.ErrTransferFailed, a.Address().Hex())
	}
	return nil
}
