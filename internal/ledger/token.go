package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swapEngine/internal/dex"
)

// Behavior selects how a token reports the outcome of a transfer.
type Behavior int

const (
	// Standard moves funds and returns true.
	Standard Behavior = iota
	// NoReturn moves funds and returns no data.
	NoReturn
	// ReturnsFalse never moves funds and returns false.
	ReturnsFalse
	// Reverts fails every transfer.
	Reverts
)

// ParseBehavior maps a config name to a Behavior.
func ParseBehavior(name string) (Behavior, error) {
	switch name {
	case "", "standard":
		return Standard, nil
	case "no-return", "no_return":
		return NoReturn, nil
	case "returns-false", "returns_false":
		return ReturnsFalse, nil
	case "reverts":
		return Reverts, nil
	default:
		return Standard, fmt.Errorf("unknown token behavior: %s", name)
	}
}

var maxAllowance = new(uint256.Int).SetAllOne()

// Token is an ERC20-like asset living in a World.
type Token struct {
	world    *World
	address  common.Address
	symbol   string
	decimals uint8
	behavior Behavior

	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int
	totalSupply *uint256.Int
}

func newToken(w *World, addr common.Address, symbol string, decimals uint8, behavior Behavior) *Token {
	return &Token{
		world:       w,
		address:     addr,
		symbol:      symbol,
		decimals:    decimals,
		behavior:    behavior,
		balances:    make(map[common.Address]*uint256.Int),
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		totalSupply: new(uint256.Int),
	}
}

func (t *Token) Address() common.Address {
	return t.address
}

func (t *Token) Symbol() string {
	return t.symbol
}

func (t *Token) Decimals() uint8 {
	return t.decimals
}

func (t *Token) Behavior() Behavior {
	return t.behavior
}

// BalanceOf returns a copy of holder's balance.
func (t *Token) BalanceOf(holder common.Address) *uint256.Int {
	if bal, ok := t.balances[holder]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// TotalSupply returns a copy of the supply.
func (t *Token) TotalSupply() *uint256.Int {
	return t.totalSupply.Clone()
}

// Allowance returns how much spender may move on behalf of owner.
func (t *Token) Allowance(owner, spender common.Address) *uint256.Int {
	if byOwner, ok := t.allowances[owner]; ok {
		if v, ok := byOwner[spender]; ok {
			return v.Clone()
		}
	}
	return new(uint256.Int)
}

// Approve sets spender's allowance over owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *uint256.Int) error {
	t.world.journal.append(allowanceChange{token: t.address, owner: owner, spender: spender, prev: t.Allowance(owner, spender)})
	t.setAllowance(owner, spender, amount.Clone())
	return t.emitApproval(owner, spender, amount)
}

// Transfer moves amount from caller to to.
func (t *Token) Transfer(caller, to common.Address, amount *uint256.Int) ([]byte, error) {
	switch t.behavior {
	case Reverts:
		return nil, ErrTokenReverted
	case ReturnsFalse:
		return dex.EncodeTransferResult(false)
	}
	if err := t.move(caller, to, amount); err != nil {
		return nil, err
	}
	return t.result()
}

// TransferFrom moves amount from from to to, spending caller's allowance.
// An unlimited allowance is never decreased.
func (t *Token) TransferFrom(caller, from, to common.Address, amount *uint256.Int) ([]byte, error) {
	switch t.behavior {
	case Reverts:
		return nil, ErrTokenReverted
	case ReturnsFalse:
		return dex.EncodeTransferResult(false)
	}
	if err := t.spendAllowance(from, caller, amount); err != nil {
		return nil, err
	}
	if err := t.move(from, to, amount); err != nil {
		return nil, err
	}
	return t.result()
}

// Mint credits amount to to out of thin air.
func (t *Token) Mint(to common.Address, amount *uint256.Int) error {
	supply, overflow := new(uint256.Int).AddOverflow(t.totalSupply, amount)
	if overflow {
		return fmt.Errorf("mint %s: total supply overflow", t.symbol)
	}
	t.world.journal.append(supplyChange{token: t.address, prev: t.totalSupply.Clone()})
	t.totalSupply = supply

	t.world.journal.append(balanceChange{token: t.address, account: to, prev: t.BalanceOf(to)})
	t.setBalance(to, new(uint256.Int).Add(t.BalanceOf(to), amount))
	return t.emitTransfer(common.Address{}, to, amount)
}

// Burn destroys amount held by from.
func (t *Token) Burn(from common.Address, amount *uint256.Int) error {
	bal := t.BalanceOf(from)
	if bal.Lt(amount) {
		return fmt.Errorf("burn %s: %w", t.symbol, ErrInsufficientBalance)
	}
	t.world.journal.append(balanceChange{token: t.address, account: from, prev: bal.Clone()})
	t.setBalance(from, new(uint256.Int).Sub(bal, amount))

	t.world.journal.append(supplyChange{token: t.address, prev: t.totalSupply.Clone()})
	t.totalSupply = new(uint256.Int).Sub(t.totalSupply, amount)
	return t.emitTransfer(from, common.Address{}, amount)
}

func (t *Token) move(from, to common.Address, amount *uint256.Int) error {
	fromBal := t.BalanceOf(from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("transfer %s: %w", t.symbol, ErrInsufficientBalance)
	}
	t.world.journal.append(balanceChange{token: t.address, account: from, prev: fromBal.Clone()})
	t.setBalance(from, new(uint256.Int).Sub(fromBal, amount))

	toBal := t.BalanceOf(to)
	t.world.journal.append(balanceChange{token: t.address, account: to, prev: toBal.Clone()})
	t.setBalance(to, new(uint256.Int).Add(toBal, amount))

	return t.emitTransfer(from, to, amount)
}

func (t *Token) spendAllowance(owner, spender common.Address, amount *uint256.Int) error {
	if owner == spender {
		return nil
	}
	current := t.Allowance(owner, spender)
	if current.Eq(maxAllowance) {
		return nil
	}
	if current.Lt(amount) {
		return fmt.Errorf("transfer from %s: %w", t.symbol, ErrInsufficientAllowance)
	}
	t.world.journal.append(allowanceChange{token: t.address, owner: owner, spender: spender, prev: current.Clone()})
	t.setAllowance(owner, spender, new(uint256.Int).Sub(current, amount))
	return nil
}

func (t *Token) result() ([]byte, error) {
	if t.behavior == NoReturn {
		return nil, nil
	}
	return dex.EncodeTransferResult(true)
}

func (t *Token) setBalance(holder common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		delete(t.balances, holder)
		return
	}
	t.balances[holder] = amount
}

func (t *Token) setAllowance(owner, spender common.Address, amount *uint256.Int) {
	byOwner, ok := t.allowances[owner]
	if !ok {
		byOwner = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = byOwner
	}
	if amount.IsZero() {
		delete(byOwner, spender)
		return
	}
	byOwner[spender] = amount
}

func (t *Token) emitTransfer(from, to common.Address, amount *uint256.Int) error {
	log, err := dex.EncodeTransfer(t.address, from, to, amount)
	if err != nil {
		return err
	}
	t.world.AddLog(log)
	return nil
}

func (t *Token) emitApproval(owner, spender common.Address, amount *uint256.Int) error {
	log, err := dex.EncodeApproval(t.address, owner, spender, amount)
	if err != nil {
		return err
	}
	t.world.AddLog(log)
	return nil
}
