package dex

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"swapEngine/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 aliases for forks that rename events.
	Topic0Map map[string]string
}

// PairDecoder decodes constant-product pair and factory events.
type PairDecoder struct {
	pairABI     abi.ABI
	factoryABI  abi.ABI
	topicToName map[string]string
}

// NewPairDecoder builds a pair decoder.
func NewPairDecoder(cfg DecoderConfig) (*PairDecoder, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	factoryABI, err := V2FactoryABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string)
	for _, event := range []abi.Event{
		pairABI.Events[model.EventSwap],
		pairABI.Events[model.EventMint],
		pairABI.Events[model.EventBurn],
		pairABI.Events[model.EventSync],
		factoryABI.Events[model.EventPairCreated],
	} {
		topicToName[strings.ToLower(event.ID.Hex())] = event.Name
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &PairDecoder{
		pairABI:     pairABI,
		factoryABI:  factoryABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *PairDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent. PairCreated logs teach the
// meta cache about the new pair so later pair events need no RPC lookup.
func (d *PairDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	emitter := common.HexToAddress(log.Address)

	if name == model.EventPairCreated {
		decoded, err := d.decodePairCreated(log)
		if err != nil {
			return nil, err
		}
		meta := model.PoolMeta{Token0: decoded.Token0, Token1: decoded.Token1, Factory: emitter.Hex()}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(common.HexToAddress(decoded.Pair), meta)
		}
		return buildTypedEvent(log, name, decoded, meta), nil
	}

	poolMeta, err := getPoolMeta(ctx, emitter, log.BlockNumber)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case model.EventSwap:
		decoded, err = d.decodeSwap(log)
	case model.EventMint:
		decoded, err = d.decodeMint(log)
	case model.EventBurn:
		decoded, err = d.decodeBurn(log)
	case model.EventSync:
		decoded, err = d.decodeSync(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded, poolMeta), nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "swap":
		return model.EventSwap
	case "mint":
		return model.EventMint
	case "burn":
		return model.EventBurn
	case "sync":
		return model.EventSync
	case "paircreated", "pair_created":
		return model.EventPairCreated
	default:
		return ""
	}
}

func getPoolMeta(ctx DecodeContext, pool common.Address, blockNumber uint64) (model.PoolMeta, error) {
	var meta model.PoolMeta
	var ok bool
	if ctx.PoolMetaCache != nil {
		meta, ok = ctx.PoolMetaCache.Get(pool)
	}
	if !ok && ctx.Chain == nil {
		return model.PoolMeta{}, fmt.Errorf("no metadata for pool %s and chain client is nil", pool.Hex())
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	if !ok {
		var err error
		meta, err = FetchPoolMeta(callCtx, ctx.Chain, pool, ctx.TokenMetaCache, ctx.Logger)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(pool, meta)
		}
	}

	if ctx.IncludeLiveMeta && ctx.Chain != nil {
		reserves, err := FetchPoolReserves(callCtx, ctx.Chain, pool, blockNumber)
		if err == nil {
			meta.Reserves = reserves
		} else if ctx.Logger != nil {
			ctx.Logger.Debug("getReserves call failed", zap.String("pool", pool.Hex()), zap.Error(err))
		}
	}
	return meta, nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, meta model.PoolMeta) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		PoolMeta:    meta,
		Raw:         raw,
	}
}

func (d *PairDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	event := d.pairABI.Events[model.EventSwap]
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.SwapEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	amounts, err := bigStrings(values, 4)
	if err != nil {
		return model.SwapEventData{}, fmt.Errorf("swap: %w", err)
	}

	return model.SwapEventData{
		Sender:     indexed.Sender.Hex(),
		To:         indexed.To.Hex(),
		Amount0In:  amounts[0],
		Amount1In:  amounts[1],
		Amount0Out: amounts[2],
		Amount1Out: amounts[3],
	}, nil
}

func (d *PairDecoder) decodeMint(log model.LogRecord) (model.MintEventData, error) {
	event := d.pairABI.Events[model.EventMint]
	var indexed struct {
		Sender common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.MintEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.MintEventData{}, err
	}
	amounts, err := bigStrings(values, 2)
	if err != nil {
		return model.MintEventData{}, fmt.Errorf("mint: %w", err)
	}

	return model.MintEventData{
		Sender:  indexed.Sender.Hex(),
		Amount0: amounts[0],
		Amount1: amounts[1],
	}, nil
}

func (d *PairDecoder) decodeBurn(log model.LogRecord) (model.BurnEventData, error) {
	event := d.pairABI.Events[model.EventBurn]
	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.BurnEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.BurnEventData{}, err
	}
	amounts, err := bigStrings(values, 2)
	if err != nil {
		return model.BurnEventData{}, fmt.Errorf("burn: %w", err)
	}

	return model.BurnEventData{
		Sender:  indexed.Sender.Hex(),
		To:      indexed.To.Hex(),
		Amount0: amounts[0],
		Amount1: amounts[1],
	}, nil
}

func (d *PairDecoder) decodeSync(log model.LogRecord) (model.SyncEventData, error) {
	event := d.pairABI.Events[model.EventSync]
	if len(log.Topics) != 1 {
		return model.SyncEventData{}, fmt.Errorf("expected 1 topic, got %d", len(log.Topics))
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SyncEventData{}, err
	}
	reserves, err := bigStrings(values, 2)
	if err != nil {
		return model.SyncEventData{}, fmt.Errorf("sync: %w", err)
	}
	return model.SyncEventData{Reserve0: reserves[0], Reserve1: reserves[1]}, nil
}

func (d *PairDecoder) decodePairCreated(log model.LogRecord) (model.PairCreatedEventData, error) {
	event := d.factoryABI.Events[model.EventPairCreated]
	var indexed struct {
		Token0 common.Address
		Token1 common.Address
	}
	if err := parseIndexed(event, log.Topics, &indexed); err != nil {
		return model.PairCreatedEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PairCreatedEventData{}, err
	}
	if len(values) != 2 {
		return model.PairCreatedEventData{}, fmt.Errorf("unexpected pair created values: %d", len(values))
	}
	pair, err := asAddress(values[0])
	if err != nil {
		return model.PairCreatedEventData{}, err
	}
	index, err := asBigInt(values[1])
	if err != nil {
		return model.PairCreatedEventData{}, err
	}

	return model.PairCreatedEventData{
		Token0: indexed.Token0.Hex(),
		Token1: indexed.Token1.Hex(),
		Pair:   pair.Hex(),
		Index:  index.Uint64(),
	}, nil
}

func parseIndexed(event abi.Event, topics []string, out interface{}) error {
	indexedTopics, err := parseIndexedTopics(event, topics)
	if err != nil {
		return err
	}
	if err := abi.ParseTopics(out, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	return nil
}

func bigStrings(values []interface{}, want int) ([]string, error) {
	if len(values) != want {
		return nil, fmt.Errorf("unexpected values: %d", len(values))
	}
	out := make([]string, 0, want)
	for _, v := range values {
		n, err := asBigInt(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n.String())
	}
	return out, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
