package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"swapEngine/internal/amm"
	"swapEngine/internal/dex"
	"swapEngine/internal/ledger"
)

var factory = common.HexToAddress("0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f")

func TestPoolAddressMainnetVector(t *testing.T) {
	weth := common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	usdt := common.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7")
	want := common.HexToAddress("0x0d4a11d5eeaac28ec3f61d100daf4d40471f1852")

	for _, pair := range [][2]common.Address{{weth, usdt}, {usdt, weth}} {
		got, err := PoolAddress(factory, DefaultInitCodeHash, pair[0], pair[1])
		if err != nil {
			t.Fatalf("derive: %v", err)
		}
		if got != want {
			t.Fatalf("pair address mismatch: got %s want %s", got.Hex(), want.Hex())
		}
	}
}

func TestSortAssets(t *testing.T) {
	low := common.HexToAddress("0x1000000000000000000000000000000000000000")
	high := common.HexToAddress("0xA000000000000000000000000000000000000000")

	token0, token1, err := SortAssets(high, low)
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	if token0 != low || token1 != high {
		t.Fatalf("unexpected order: %s %s", token0.Hex(), token1.Hex())
	}
	if _, _, err := SortAssets(low, low); !errors.Is(err, amm.ErrIdenticalAssets) {
		t.Fatalf("expected identical assets, got %v", err)
	}
	if _, _, err := SortAssets(common.Address{}, low); !errors.Is(err, amm.ErrZeroAddress) {
		t.Fatalf("expected zero address, got %v", err)
	}
}

func TestCreatePool(t *testing.T) {
	w := ledger.NewWorld(1, 1_700_000_000)
	a := w.DeployToken("TKA", 18, ledger.Standard)
	b := w.DeployToken("TKB", 18, ledger.Standard)
	reg := New(factory, w, w, nil)

	p, err := reg.CreatePool(b.Address(), a.Address())
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	want, _ := PoolAddress(factory, DefaultInitCodeHash, a.Address(), b.Address())
	if p.Address() != want {
		t.Fatalf("pool address mismatch: %s", p.Address().Hex())
	}
	token0, token1, _ := SortAssets(a.Address(), b.Address())
	if p.Token0() != token0 || p.Token1() != token1 {
		t.Fatalf("pool tokens not canonical")
	}
	if p.Factory() != factory {
		t.Fatalf("factory mismatch")
	}

	for _, order := range [][2]common.Address{{a.Address(), b.Address()}, {b.Address(), a.Address()}} {
		got, ok := reg.Pool(order[0], order[1])
		if !ok || got != p {
			t.Fatalf("pool not recorded under %s/%s", order[0].Hex(), order[1].Hex())
		}
		if _, err := reg.CreatePool(order[0], order[1]); !errors.Is(err, amm.ErrPoolExists) {
			t.Fatalf("expected pool exists, got %v", err)
		}
	}
	if got, ok := reg.PoolAt(want); !ok || got != p {
		t.Fatalf("pool not recorded by address")
	}
	if reg.Len() != 1 || len(reg.AllPools()) != 1 {
		t.Fatalf("pool count mismatch: %d", reg.Len())
	}

	parsed, _ := dex.V2FactoryABI()
	logs := w.Logs()
	if len(logs) != 1 || logs[0].Topics[0] != parsed.Events["PairCreated"].ID {
		t.Fatalf("expected a single PairCreated log, got %d", len(logs))
	}
	if logs[0].Address != factory {
		t.Fatalf("PairCreated emitted by %s", logs[0].Address.Hex())
	}
	values, err := parsed.Events["PairCreated"].Inputs.NonIndexed().Unpack(logs[0].Data)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if values[0].(common.Address) != want {
		t.Fatalf("PairCreated pair mismatch")
	}
}

func TestCreatePoolValidation(t *testing.T) {
	w := ledger.NewWorld(1, 0)
	a := w.DeployToken("TKA", 18, ledger.Standard)
	reg := New(factory, w, w, nil)

	if _, err := reg.CreatePool(a.Address(), a.Address()); !errors.Is(err, amm.ErrIdenticalAssets) {
		t.Fatalf("expected identical assets, got %v", err)
	}
	if _, err := reg.CreatePool(a.Address(), common.Address{}); !errors.Is(err, amm.ErrZeroAddress) {
		t.Fatalf("expected zero address, got %v", err)
	}
	unknown := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	if _, err := reg.CreatePool(a.Address(), unknown); !errors.Is(err, ledger.ErrUnknownToken) {
		t.Fatalf("expected unknown token, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("failed creation recorded a pool")
	}
}

func TestCreatePoolRevertedWithSnapshot(t *testing.T) {
	w := ledger.NewWorld(1, 0)
	a := w.DeployToken("TKA", 18, ledger.Standard)
	b := w.DeployToken("TKB", 18, ledger.Standard)
	reg := New(factory, w, w, nil)

	snap := w.Snapshot()
	p, err := reg.CreatePool(a.Address(), b.Address())
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	w.RevertToSnapshot(snap)

	if _, ok := reg.Pool(a.Address(), b.Address()); ok {
		t.Fatalf("pool survived revert")
	}
	if _, ok := w.ShareToken(p.Address()); ok {
		t.Fatalf("share ledger survived revert")
	}
	if reg.Len() != 0 || len(w.Logs()) != 0 {
		t.Fatalf("revert left state behind")
	}
	if _, err := reg.CreatePool(b.Address(), a.Address()); err != nil {
		t.Fatalf("recreate after revert: %v", err)
	}
}

func TestReserves(t *testing.T) {
	w := ledger.NewWorld(1, 0)
	a := w.DeployToken("TKA", 18, ledger.Standard)
	b := w.DeployToken("TKB", 18, ledger.Standard)
	reg := New(factory, w, w, nil)
	p, _ := reg.CreatePool(a.Address(), b.Address())

	r0, r1, err := reg.Reserves(context.Background(), p.Address())
	if err != nil {
		t.Fatalf("reserves: %v", err)
	}
	if !r0.IsZero() || !r1.IsZero() {
		t.Fatalf("new pool should be empty")
	}
	if _, _, err := reg.Reserves(context.Background(), a.Address()); !errors.Is(err, amm.ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
}
