package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"swapEngine/internal/model"
)

const (
	pool   = "0x1111111111111111111111111111111111111111"
	token0 = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	token1 = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
)

func event(name string, block uint64, payload interface{}) *model.TypedEvent {
	return &model.TypedEvent{
		BlockNumber: block,
		Address:     pool,
		EventName:   name,
		Decoded:     payload,
		PoolMeta:    model.PoolMeta{Token0: token0, Token1: token1},
	}
}

func TestCollectorObserve(t *testing.T) {
	c, _, err := New(nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	events := []*model.TypedEvent{
		event(model.EventPairCreated, 5, model.PairCreatedEventData{Pair: pool}),
		event(model.EventMint, 6, model.MintEventData{Amount0: "10000", Amount1: "10000"}),
		event(model.EventSync, 6, model.SyncEventData{Reserve0: "10000", Reserve1: "10000"}),
		event(model.EventSwap, 7, model.SwapEventData{Amount0In: "1000", Amount1Out: "906"}),
		event(model.EventSync, 7, model.SyncEventData{Reserve0: "11000", Reserve1: "9094"}),
		event(model.EventSwap, 3, model.SwapEventData{}),
	}
	for _, e := range events {
		if err := c.Observe(e); err != nil {
			t.Fatalf("observe %s: %v", e.EventName, err)
		}
	}

	if got := testutil.ToFloat64(c.PoolsCreated); got != 1 {
		t.Fatalf("pools created mismatch: %v", got)
	}
	if got := testutil.ToFloat64(c.Events.WithLabelValues(model.EventSwap)); got != 2 {
		t.Fatalf("swap count mismatch: %v", got)
	}
	if got := testutil.ToFloat64(c.Reserve.WithLabelValues(pool, token1)); got != 9094 {
		t.Fatalf("reserve mismatch: %v", got)
	}
	if got := testutil.ToFloat64(c.LastBlock); got != 7 {
		t.Fatalf("last block should not move backwards: %v", got)
	}

	if err := c.Observe(event(model.EventSync, 8, model.SyncEventData{Reserve0: "x", Reserve1: "1"})); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCollectorSnapshotAndTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, gatherer, err := New(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.ObserveSnapshot(model.PoolSnapshot{Address: pool, TotalSupply: "10000"}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if n := testutil.CollectAndCount(c.TotalSupply); n != 1 {
		t.Fatalf("expected one supply series, got %d", n)
	}

	path := filepath.Join(t.TempDir(), "amm.prom")
	if err := WriteTextfile(path, gatherer); err != nil {
		t.Fatalf("textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `amm_pair_total_supply{pool="`+pool+`"} 10000`) {
		t.Fatalf("textfile missing supply series:\n%s", data)
	}

	if _, _, err := New(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
