package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"swapEngine/internal/asset"
)

var (
	ErrUnknownToken           = errors.New("unknown token")
	ErrTokenExists            = errors.New("token exists")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientAllowance  = errors.New("insufficient allowance")
	ErrTokenReverted          = errors.New("token reverted")
	ErrSharesAlreadyAllocated = errors.New("share ledger already allocated")
)

type revision struct {
	id           int
	journalIndex int
}

// World is an in-memory execution environment: token balances, pool share
// ledgers, a clock, and an event log, all behind a revertible journal.
//
// World is not safe for concurrent use. Every operation runs to completion
// before the next begins.
type World struct {
	chainID     uint64
	blockNumber uint64
	now         uint64
	deployer    common.Address
	nonce       uint64

	tokens map[common.Address]*Token
	shares map[common.Address]*ShareToken

	journal        *journal
	validRevisions []revision
	nextRevisionID int

	txHash  common.Hash
	txIndex uint
	logs    []*types.Log
	logSize uint
}

// NewWorld creates an empty world whose clock starts at now.
func NewWorld(chainID uint64, now uint64) *World {
	return &World{
		chainID:     chainID,
		blockNumber: 1,
		now:         now,
		deployer:    common.HexToAddress("0x00000000000000000000000000000000000d3910"),
		tokens:      make(map[common.Address]*Token),
		shares:      make(map[common.Address]*ShareToken),
		journal:     &journal{},
	}
}

func (w *World) ChainID() uint64 {
	return w.chainID
}

// Now returns the current block time in seconds.
func (w *World) Now() uint64 {
	return w.now
}

func (w *World) BlockNumber() uint64 {
	return w.blockNumber
}

// SetTime moves the clock to ts.
func (w *World) SetTime(ts uint64) {
	w.now = ts
}

// AdvanceTime moves the clock forward by seconds.
func (w *World) AdvanceTime(seconds uint64) {
	w.now += seconds
}

// Snapshot returns an identifier for the current revision of the state.
func (w *World) Snapshot() int {
	id := w.nextRevisionID
	w.nextRevisionID++
	w.validRevisions = append(w.validRevisions, revision{id, w.journal.length()})
	return id
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (w *World) RevertToSnapshot(revid int) {
	idx := sort.Search(len(w.validRevisions), func(i int) bool {
		return w.validRevisions[i].id >= revid
	})
	if idx == len(w.validRevisions) || w.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := w.validRevisions[idx].journalIndex

	w.journal.revert(w, snapshot)
	w.validRevisions = w.validRevisions[:idx]
}

// Journal records an undo step for state held outside the world.
func (w *World) Journal(undo func()) {
	w.journal.append(customChange{undo: undo})
}

// BeginTx starts a new transaction context. Logs added afterwards carry its
// hash and index.
func (w *World) BeginTx() common.Hash {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], w.chainID)
	binary.BigEndian.PutUint64(buf[8:], w.blockNumber)
	w.txHash = crypto.Keccak256Hash([]byte("tx"), buf[:])
	return w.txHash
}

// AddLog appends an event to the current transaction.
func (w *World) AddLog(log *types.Log) {
	w.journal.append(addLogChange{})

	log.BlockNumber = w.blockNumber
	log.TxHash = w.txHash
	log.TxIndex = w.txIndex
	log.Index = w.logSize
	w.logs = append(w.logs, log)
	w.logSize++
}

// Logs returns the logs of the current transaction.
func (w *World) Logs() []*types.Log {
	return w.logs
}

// Finalise commits the current transaction and returns its logs. Journal
// entries are discarded, so earlier snapshots become invalid. Each
// transaction is sealed in its own block.
func (w *World) Finalise() []*types.Log {
	logs := w.logs
	blockHash := crypto.Keccak256Hash([]byte("block"), w.txHash.Bytes())
	for _, l := range logs {
		l.BlockHash = blockHash
	}

	w.journal.reset()
	w.validRevisions = w.validRevisions[:0]
	w.logs = nil
	w.logSize = 0
	w.blockNumber++
	return logs
}

// DeployToken creates a token at the next deterministic deployer address.
func (w *World) DeployToken(symbol string, decimals uint8, behavior Behavior) *Token {
	addr := crypto.CreateAddress(w.deployer, w.nonce)
	w.nonce++
	token, _ := w.NewTokenAt(addr, symbol, decimals, behavior)
	return token
}

// NewTokenAt creates a token at a caller-chosen address.
func (w *World) NewTokenAt(addr common.Address, symbol string, decimals uint8, behavior Behavior) (*Token, error) {
	if _, ok := w.tokens[addr]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenExists, addr.Hex())
	}
	token := newToken(w, addr, symbol, decimals, behavior)
	w.tokens[addr] = token
	return token, nil
}

// Token returns the token at addr.
func (w *World) Token(addr common.Address) (*Token, bool) {
	token, ok := w.tokens[addr]
	return token, ok
}

// ShareToken returns the share ledger of the pool at addr.
func (w *World) ShareToken(pool common.Address) (*ShareToken, bool) {
	shares, ok := w.shares[pool]
	return shares, ok
}

// Asset implements asset.Resolver.
func (w *World) Asset(addr common.Address) (asset.Asset, error) {
	token, ok := w.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return token, nil
}

// Shares implements asset.Resolver. Allocation is journalled so a reverted
// pool creation leaves no ledger behind.
func (w *World) Shares(pool common.Address) (asset.ShareLedger, error) {
	if _, ok := w.shares[pool]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSharesAlreadyAllocated, pool.Hex())
	}
	shares := &ShareToken{Token: newToken(w, pool, "UNI-V2", 18, Standard)}
	w.shares[pool] = shares
	w.Journal(func() { delete(w.shares, pool) })
	return shares, nil
}

func (w *World) lookup(addr common.Address) *Token {
	if token, ok := w.tokens[addr]; ok {
		return token
	}
	if shares, ok := w.shares[addr]; ok {
		return shares.Token
	}
	panic(fmt.Errorf("journal references unknown token %s", addr.Hex()))
}
