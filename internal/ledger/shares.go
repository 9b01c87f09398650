package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ShareToken is the liquidity share ledger of one pool. It lives at the
// pool's address, like a pair contract that is its own LP token.
type ShareToken struct {
	*Token
}

// Transfer moves shares from caller to to.
func (s *ShareToken) Transfer(caller, to common.Address, amount *uint256.Int) error {
	_, err := s.Token.Transfer(caller, to, amount)
	return err
}

// TransferFrom moves shares from from to to, spending caller's allowance.
func (s *ShareToken) TransferFrom(caller, from, to common.Address, amount *uint256.Int) error {
	_, err := s.Token.TransferFrom(caller, from, to, amount)
	return err
}
