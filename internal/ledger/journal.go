package ledger

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// journalEntry is a modification that can be undone.
type journalEntry interface {
	revert(*World)
}

type journal struct {
	entries []journalEntry
}

func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

// revert undoes every entry recorded after snapshot, newest first.
func (j *journal) revert(w *World, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i].revert(w)
	}
	j.entries = j.entries[:snapshot]
}

func (j *journal) length() int {
	return len(j.entries)
}

func (j *journal) reset() {
	j.entries = j.entries[:0]
}

type (
	balanceChange struct {
		token   common.Address
		account common.Address
		prev    *uint256.Int
	}
	allowanceChange struct {
		token   common.Address
		owner   common.Address
		spender common.Address
		prev    *uint256.Int
	}
	supplyChange struct {
		token common.Address
		prev  *uint256.Int
	}
	addLogChange struct{}
	customChange struct {
		undo func()
	}
)

func (ch balanceChange) revert(w *World) {
	w.lookup(ch.token).setBalance(ch.account, ch.prev)
}

func (ch allowanceChange) revert(w *World) {
	w.lookup(ch.token).setAllowance(ch.owner, ch.spender, ch.prev)
}

func (ch supplyChange) revert(w *World) {
	w.lookup(ch.token).totalSupply = ch.prev
}

func (ch addLogChange) revert(w *World) {
	w.logs = w.logs[:len(w.logs)-1]
	w.logSize--
}

func (ch customChange) revert(*World) {
	ch.undo()
}
