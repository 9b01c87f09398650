package dex

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapEngine/internal/chain"
	"swapEngine/internal/model"
)

var (
	testFactory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	testPair    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken0  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken1  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testSender  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testTo      = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func buildLogRecord(t *testing.T, log *types.Log, err error) model.LogRecord {
	t.Helper()
	if err != nil {
		t.Fatalf("encode log: %v", err)
	}
	log.BlockNumber = 12345
	log.Index = 1
	return NewLogRecord(56, *log, 1700000000, time.Unix(1700000100, 0))
}

func TestPairDecoderPairCreatedSeedsCache(t *testing.T) {
	decoder, err := NewPairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	ctx := DecodeContext{PoolMetaCache: NewPoolMetaCache(), Logger: zap.NewNop()}

	swapLog, swapErr := EncodeSwap(testPair, testSender, uint256.NewInt(1000), uint256.NewInt(0), uint256.NewInt(0), uint256.NewInt(996), testTo)
	swap := buildLogRecord(t, swapLog, swapErr)
	if _, err := decoder.Decode(swap, ctx); err == nil {
		t.Fatalf("expected error for unknown pair without chain client")
	}

	createdLog, createdErr := EncodePairCreated(testFactory, testToken0, testToken1, testPair, 1)
	created := buildLogRecord(t, createdLog, createdErr)
	event, err := decoder.Decode(created, ctx)
	if err != nil {
		t.Fatalf("decode pair created: %v", err)
	}
	payload, ok := event.Decoded.(model.PairCreatedEventData)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event.Decoded)
	}
	if payload.Pair != testPair.Hex() || payload.Index != 1 {
		t.Fatalf("pair created mismatch: %+v", payload)
	}

	event, err = decoder.Decode(swap, ctx)
	if err != nil {
		t.Fatalf("decode swap after pair created: %v", err)
	}
	if event.PoolMeta.Token0 != testToken0.Hex() || event.PoolMeta.Factory != testFactory.Hex() {
		t.Fatalf("pool meta mismatch: %+v", event.PoolMeta)
	}
	decoded := event.Decoded.(model.SwapEventData)
	if decoded.Amount0In != "1000" || decoded.Amount1Out != "996" || decoded.Amount1In != "0" {
		t.Fatalf("swap amounts mismatch: %+v", decoded)
	}
	if decoded.Sender != testSender.Hex() || decoded.To != testTo.Hex() {
		t.Fatalf("swap addresses mismatch: %+v", decoded)
	}
}

func TestPairDecoderLiquidityEvents(t *testing.T) {
	decoder, err := NewPairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	cache := NewPoolMetaCache()
	cache.Set(testPair, model.PoolMeta{Token0: testToken0.Hex(), Token1: testToken1.Hex()})
	ctx := DecodeContext{PoolMetaCache: cache, Logger: zap.NewNop()}

	mintLog, mintErr := EncodeMint(testPair, testSender, uint256.NewInt(5000), uint256.NewInt(7000))
	burnLog, burnErr := EncodeBurn(testPair, testSender, uint256.NewInt(100), uint256.NewInt(200), testTo)
	syncLog, syncErr := EncodeSync(testPair, uint256.NewInt(4900), uint256.NewInt(6800))

	tests := []struct {
		name   string
		record model.LogRecord
		want   interface{}
	}{
		{
			name:   model.EventMint,
			record: buildLogRecord(t, mintLog, mintErr),
			want:   model.MintEventData{Sender: testSender.Hex(), Amount0: "5000", Amount1: "7000"},
		},
		{
			name:   model.EventBurn,
			record: buildLogRecord(t, burnLog, burnErr),
			want:   model.BurnEventData{Sender: testSender.Hex(), To: testTo.Hex(), Amount0: "100", Amount1: "200"},
		},
		{
			name:   model.EventSync,
			record: buildLogRecord(t, syncLog, syncErr),
			want:   model.SyncEventData{Reserve0: "4900", Reserve1: "6800"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !decoder.CanDecode(tc.record.Topics[0]) {
				t.Fatalf("decoder should accept %s", tc.name)
			}
			event, err := decoder.Decode(tc.record, ctx)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if event.EventName != tc.name {
				t.Fatalf("event name mismatch: %s", event.EventName)
			}
			if event.Decoded != tc.want {
				t.Fatalf("decoded mismatch: %+v", event.Decoded)
			}
			if event.Raw == nil || event.Raw.Topic0 != tc.record.Topics[0] {
				t.Fatalf("raw ref mismatch")
			}
		})
	}
}

func TestPairDecoderRejectsMalformedLogs(t *testing.T) {
	decoder, err := NewPairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	cache := NewPoolMetaCache()
	cache.Set(testPair, model.PoolMeta{Token0: testToken0.Hex(), Token1: testToken1.Hex()})
	ctx := DecodeContext{PoolMetaCache: cache}

	syncLog, syncErr := EncodeSync(testPair, uint256.NewInt(1), uint256.NewInt(2))
	record := buildLogRecord(t, syncLog, syncErr)

	extraTopic := record
	extraTopic.Topics = append([]string{}, record.Topics...)
	extraTopic.Topics = append(extraTopic.Topics, AddressTopic(testSender).Hex())
	if _, err := decoder.Decode(extraTopic, ctx); err == nil {
		t.Fatalf("expected topic count error")
	}

	badData := record
	badData.Data = "0x1234"
	if _, err := decoder.Decode(badData, ctx); err == nil {
		t.Fatalf("expected unpack error")
	}

	unknown := record
	unknown.Topics = []string{common.HexToHash("0x01").Hex()}
	if decoder.CanDecode(unknown.Topics[0]) {
		t.Fatalf("unexpected topic accepted")
	}
	if _, err := decoder.Decode(unknown, ctx); err == nil {
		t.Fatalf("expected unsupported topic error")
	}
}

func TestPairDecoderTopicAliases(t *testing.T) {
	alias := common.HexToHash("0xfeed").Hex()
	decoder, err := NewPairDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "sync"}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode("0x" + strings.ToUpper(alias[2:])) {
		t.Fatalf("alias not registered")
	}

	if _, err := NewPairDecoder(DecoderConfig{Topic0Map: map[string]string{alias: "collect"}}); err == nil {
		t.Fatalf("expected error for unknown event name")
	}
}

func TestDefaultTopics(t *testing.T) {
	topics, err := DefaultTopics()
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if len(topics) != 5 {
		t.Fatalf("expected 5 topics, got %d", len(topics))
	}
	// keccak256("Sync(uint112,uint112)")
	sync := common.HexToHash("0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1")
	if topics[3] != sync {
		t.Fatalf("sync topic mismatch: %s", topics[3].Hex())
	}
}

type fakePairNode struct {
	ret   []byte
	block string
}

func (f *fakePairNode) Call(_ map[string]interface{}, block string) hexutil.Bytes {
	f.block = block
	return f.ret
}

func TestPairReaderReserves(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	ret, err := pairABI.Methods["getReserves"].Outputs.Pack(big.NewInt(5000), big.NewInt(7000), uint32(1234))
	if err != nil {
		t.Fatalf("pack reserves: %v", err)
	}

	node := &fakePairNode{ret: ret}
	server := rpc.NewServer()
	if err := server.RegisterName("eth", node); err != nil {
		t.Fatalf("register: %v", err)
	}
	client := chain.NewFromRPC(rpc.DialInProc(server))
	defer func() {
		client.Close()
		server.Stop()
	}()

	reserve0, reserve1, err := NewPairReader(client, 99).Reserves(context.Background(), testPair)
	if err != nil {
		t.Fatalf("reserves: %v", err)
	}
	if reserve0.Uint64() != 5000 || reserve1.Uint64() != 7000 {
		t.Fatalf("reserves mismatch: %v %v", reserve0, reserve1)
	}
	if node.block != "0x63" {
		t.Fatalf("block tag mismatch: %s", node.block)
	}
}
