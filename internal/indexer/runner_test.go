package indexer

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"

	"swapEngine/internal/chain"
	"swapEngine/internal/dex"
	"swapEngine/internal/model"
)

var testPair = common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")

// fakeEth serves eth_getLogs and rejects ranges wider than maxRange blocks.
type fakeEth struct {
	logs     []types.Log
	maxRange uint64
	getLogs  atomic.Int32
	rejected atomic.Int32
}

func (f *fakeEth) ChainId() *hexutil.Big {
	return (*hexutil.Big)(hexutil.MustDecodeBig("0x38"))
}

func (f *fakeEth) BlockNumber() hexutil.Uint64 {
	return 20
}

func (f *fakeEth) GetBlockByNumber(number hexutil.Uint64, _ bool) map[string]interface{} {
	return map[string]interface{}{
		"number":    number,
		"timestamp": hexutil.Uint64(1_700_000_000 + 12*uint64(number)),
	}
}

func (f *fakeEth) GetLogs(crit map[string]interface{}) ([]types.Log, error) {
	f.getLogs.Add(1)
	from, err := hexutil.DecodeUint64(crit["fromBlock"].(string))
	if err != nil {
		return nil, err
	}
	to, err := hexutil.DecodeUint64(crit["toBlock"].(string))
	if err != nil {
		return nil, err
	}
	if f.maxRange > 0 && to-from+1 > f.maxRange {
		f.rejected.Add(1)
		return nil, errors.New("query returned more than 10000 results")
	}
	out := []types.Log{}
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

type memoryStorage struct {
	records []model.LogRecord
}

func (m *memoryStorage) PutLogBatch(logs []model.LogRecord) error {
	m.records = append(m.records, logs...)
	return nil
}

func syncLog(t *testing.T, block uint64, index uint) types.Log {
	t.Helper()
	log, err := dex.EncodeSync(testPair, uint256.NewInt(5000+block), uint256.NewInt(7000))
	if err != nil {
		t.Fatalf("encode sync: %v", err)
	}
	log.BlockNumber = block
	log.Index = index
	log.TxHash = common.BytesToHash([]byte{0x0a, byte(block)})
	log.BlockHash = common.BytesToHash([]byte{0x0b, byte(block)})
	return *log
}

func newTestChain(t *testing.T, fake *fakeEth) *chain.Client {
	t.Helper()
	server := rpc.NewServer()
	if err := server.RegisterName("eth", fake); err != nil {
		t.Fatalf("register: %v", err)
	}
	client := chain.NewFromRPC(rpc.DialInProc(server))
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})
	return client
}

func TestRunnerIndexesAndResumes(t *testing.T) {
	fake := &fakeEth{
		maxRange: 4,
		logs:     []types.Log{syncLog(t, 10, 0), syncLog(t, 12, 3), syncLog(t, 17, 1)},
	}
	client := newTestChain(t, fake)
	cfg := RunConfig{
		FromBlock:         10,
		ToBlock:           17,
		Addresses:         []common.Address{testPair},
		BatchSize:         8,
		CheckpointPath:    filepath.Join(t.TempDir(), "checkpoint.json"),
		CheckpointEnabled: true,
	}

	store := &memoryStorage{}
	if err := NewRunner(cfg, client, store, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(store.records))
	}
	if fake.rejected.Load() != 1 {
		t.Fatalf("expected one rejected range, got %d", fake.rejected.Load())
	}
	first := store.records[0]
	if first.ChainID != 56 || first.BlockNumber != 10 || first.Timestamp != 1_700_000_120 || first.Source != model.SourceChain {
		t.Fatalf("record mismatch: %+v", first)
	}
	if store.records[2].LogIndex != 1 || store.records[2].Address != testPair.Hex() {
		t.Fatalf("record mismatch: %+v", store.records[2])
	}

	cp, ok, err := NewCheckpointStore(cfg.CheckpointPath, true).Load()
	if err != nil || !ok || cp.LastProcessedBlock != 17 || cp.Filter == "" {
		t.Fatalf("checkpoint mismatch: %+v %v %v", cp, ok, err)
	}

	calls := fake.getLogs.Load()
	resumed := &memoryStorage{}
	if err := NewRunner(cfg, client, resumed, nil).Run(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(resumed.records) != 0 || fake.getLogs.Load() != calls {
		t.Fatalf("resume should have nothing to fetch")
	}

	cfg.Addresses = append(cfg.Addresses, common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"))
	changed := &memoryStorage{}
	if err := NewRunner(cfg, client, changed, nil).Run(context.Background()); err != nil {
		t.Fatalf("changed filter: %v", err)
	}
	if len(changed.records) != 3 {
		t.Fatalf("a new filter should start over, got %d records", len(changed.records))
	}
}

func TestRunnerHalvesDownToSingleBlocks(t *testing.T) {
	fake := &fakeEth{maxRange: 1, logs: []types.Log{syncLog(t, 3, 0), syncLog(t, 5, 0)}}
	client := newTestChain(t, fake)

	store := &memoryStorage{}
	err := NewRunner(RunConfig{FromBlock: 3, ToBlock: 6, Addresses: []common.Address{testPair}, BatchSize: 4}, client, store, nil).
		Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// 3-6 is rejected, then 3-4 and 5-6, leaving four single-block calls.
	if fake.rejected.Load() != 3 || fake.getLogs.Load() != 7 {
		t.Fatalf("unexpected calls: rejected %d total %d", fake.rejected.Load(), fake.getLogs.Load())
	}
	if len(store.records) != 2 || store.records[1].BlockNumber != 5 {
		t.Fatalf("records mismatch: %+v", store.records)
	}
}

func TestRunnerValidation(t *testing.T) {
	if err := NewRunner(RunConfig{}, nil, &memoryStorage{}, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error for nil chain")
	}
	client := newTestChain(t, &fakeEth{})
	if err := NewRunner(RunConfig{BatchSize: 1}, client, &memoryStorage{}, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error without addresses")
	}
}

func TestIsRangeLimit(t *testing.T) {
	if !isRangeLimit(errors.New("Query returned more than 10000 results")) {
		t.Fatalf("expected range limit")
	}
	if isRangeLimit(errors.New("connection refused")) || isRangeLimit(nil) {
		t.Fatalf("unexpected range limit")
	}
}

func TestResolveAddresses(t *testing.T) {
	weth := "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	usdt := "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	got, err := ResolveAddresses(FilterSpec{
		Addresses:      []string{testPair.Hex()},
		Pairs:          []string{usdt + ":" + weth},
		Factory:        "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
		InitCodeHash:   "0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f",
		IncludeFactory: true,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// The derived WETH/USDT pair equals the explicit address and is listed once.
	if len(got) != 2 || got[0] != testPair || got[1] != common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f") {
		t.Fatalf("addresses mismatch: %v", got)
	}

	if _, err := ResolveAddresses(FilterSpec{Pairs: []string{weth}}); err == nil {
		t.Fatalf("expected error for malformed pair")
	}
	if _, err := ResolveAddresses(FilterSpec{Pairs: []string{usdt + ":" + weth}, Factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"}); err == nil {
		t.Fatalf("expected error for missing init code hash")
	}
}

func TestFilterFingerprintIgnoresOrder(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	topics, err := dex.DefaultTopics()
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if FilterFingerprint([]common.Address{a, b}, topics) != FilterFingerprint([]common.Address{b, a}, topics) {
		t.Fatalf("fingerprint depends on order")
	}
	if FilterFingerprint([]common.Address{a}, topics) == FilterFingerprint([]common.Address{b}, topics) {
		t.Fatalf("fingerprint ignores addresses")
	}
}
