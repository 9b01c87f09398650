package pool

import "github.com/ethereum/go-ethereum/core/types"

// Env is the execution environment a pool runs in. Snapshot and
// RevertToSnapshot give all-or-nothing semantics; Journal registers the
// undo step for state the pool keeps itself.
type Env interface {
	Now() uint64
	Snapshot() int
	RevertToSnapshot(revid int)
	Journal(undo func())
	AddLog(log *types.Log)
}

// Atomic runs fn and reverts every effect it had if it fails.
func Atomic(env Env, fn func() error) error {
	snap := env.Snapshot()
	if err := fn(); err != nil {
		env.RevertToSnapshot(snap)
		return err
	}
	return nil
}
