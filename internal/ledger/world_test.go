package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swapEngine/internal/asset"
	"swapEngine/internal/dex"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestSnapshotRevertRestoresBalances(t *testing.T) {
	w := NewWorld(1, 1_700_000_000)
	token := w.DeployToken("TKA", 18, Standard)
	if err := token.Mint(alice, uint256.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	snap := w.Snapshot()
	if _, err := token.Transfer(alice, bob, uint256.NewInt(400)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	flag := true
	w.Journal(func() { flag = false })
	if token.BalanceOf(bob).Uint64() != 400 {
		t.Fatalf("bob balance mismatch: %d", token.BalanceOf(bob).Uint64())
	}
	logsBefore := len(w.Logs())

	w.RevertToSnapshot(snap)

	if token.BalanceOf(alice).Uint64() != 1000 || !token.BalanceOf(bob).IsZero() {
		t.Fatalf("balances not reverted: alice=%d bob=%d", token.BalanceOf(alice).Uint64(), token.BalanceOf(bob).Uint64())
	}
	if flag {
		t.Fatalf("custom journal entry not reverted")
	}
	if len(w.Logs()) != logsBefore-1 {
		t.Fatalf("transfer log not reverted: %d", len(w.Logs()))
	}
}

func TestNestedSnapshots(t *testing.T) {
	w := NewWorld(1, 0)
	token := w.DeployToken("TKA", 18, Standard)

	outer := w.Snapshot()
	_ = token.Mint(alice, uint256.NewInt(10))
	inner := w.Snapshot()
	_ = token.Mint(alice, uint256.NewInt(5))

	w.RevertToSnapshot(inner)
	if token.BalanceOf(alice).Uint64() != 10 {
		t.Fatalf("inner revert mismatch: %d", token.BalanceOf(alice).Uint64())
	}
	w.RevertToSnapshot(outer)
	if !token.TotalSupply().IsZero() {
		t.Fatalf("outer revert mismatch: %d", token.TotalSupply().Uint64())
	}
}

func TestTransferFromAllowance(t *testing.T) {
	w := NewWorld(1, 0)
	token := w.DeployToken("TKA", 18, Standard)
	_ = token.Mint(alice, uint256.NewInt(100))

	if _, err := token.TransferFrom(bob, alice, bob, uint256.NewInt(1)); !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("expected allowance error, got %v", err)
	}

	_ = token.Approve(alice, bob, uint256.NewInt(60))
	if _, err := token.TransferFrom(bob, alice, bob, uint256.NewInt(50)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if token.Allowance(alice, bob).Uint64() != 10 {
		t.Fatalf("allowance not spent: %d", token.Allowance(alice, bob).Uint64())
	}

	_ = token.Approve(alice, bob, maxAllowance)
	if _, err := token.TransferFrom(bob, alice, bob, uint256.NewInt(50)); err != nil {
		t.Fatalf("transfer from unlimited: %v", err)
	}
	if !token.Allowance(alice, bob).Eq(maxAllowance) {
		t.Fatalf("unlimited allowance must not decrease")
	}
}

func TestTokenBehaviors(t *testing.T) {
	w := NewWorld(1, 0)

	cases := []struct {
		behavior Behavior
		moves    bool
		wantErr  bool
	}{
		{Standard, true, false},
		{NoReturn, true, false},
		{ReturnsFalse, false, true},
		{Reverts, false, true},
	}
	for i, tc := range cases {
		token := w.DeployToken("TKN", 18, tc.behavior)
		_ = token.Mint(alice, uint256.NewInt(10))

		err := asset.SafeTransfer(token, alice, bob, uint256.NewInt(4))
		if (err != nil) != tc.wantErr {
			t.Fatalf("case %d: unexpected error state: %v", i, err)
		}
		moved := token.BalanceOf(bob).Uint64() == 4
		if moved != tc.moves {
			t.Fatalf("case %d: moved=%v, want %v", i, moved, tc.moves)
		}
	}
}

func TestSharesAllocationIsJournalled(t *testing.T) {
	w := NewWorld(1, 0)
	pool := common.HexToAddress("0x0d4a11d5eeaac28ec3f61d100daf4d40471f1852")

	snap := w.Snapshot()
	shares, err := w.Shares(pool)
	if err != nil {
		t.Fatalf("shares: %v", err)
	}
	if err := shares.Mint(alice, uint256.NewInt(1)); err != nil {
		t.Fatalf("mint shares: %v", err)
	}
	if _, err := w.Shares(pool); !errors.Is(err, ErrSharesAlreadyAllocated) {
		t.Fatalf("expected double allocation error, got %v", err)
	}

	w.RevertToSnapshot(snap)
	if _, ok := w.ShareToken(pool); ok {
		t.Fatalf("share ledger should be removed on revert")
	}
}

func TestFinaliseSealsLogs(t *testing.T) {
	w := NewWorld(1, 0)
	token := w.DeployToken("TKA", 18, Standard)

	tx := w.BeginTx()
	_ = token.Mint(alice, uint256.NewInt(7))
	_ = token.Mint(bob, uint256.NewInt(8))
	block := w.BlockNumber()

	logs := w.Finalise()
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	parsed, err := dex.ERC20ABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	for i, l := range logs {
		if l.TxHash != tx || l.BlockNumber != block || l.Index != uint(i) {
			t.Fatalf("log %d context mismatch: %+v", i, l)
		}
		if l.Topics[0] != parsed.Events["Transfer"].ID {
			t.Fatalf("log %d is not a transfer", i)
		}
	}
	if w.BlockNumber() != block+1 {
		t.Fatalf("block number not advanced")
	}
	if len(w.Logs()) != 0 {
		t.Fatalf("logs not cleared")
	}
}
