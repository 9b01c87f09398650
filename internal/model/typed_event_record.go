package model

import (
	"encoding/json"
	"fmt"
)

// TypedEventRecord is a TypedEvent read back from JSONL. Decoded stays raw
// until the consumer knows which payload to expect.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	PoolMeta    PoolMeta        `json:"pool_meta"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}

// Swap decodes the payload of a Swap record.
func (r TypedEventRecord) Swap() (SwapEventData, error) {
	var out SwapEventData
	if err := r.decodeAs(EventSwap, &out); err != nil {
		return SwapEventData{}, err
	}
	return out, nil
}

// Sync decodes the payload of a Sync record.
func (r TypedEventRecord) Sync() (SyncEventData, error) {
	var out SyncEventData
	if err := r.decodeAs(EventSync, &out); err != nil {
		return SyncEventData{}, err
	}
	return out, nil
}

func (r TypedEventRecord) decodeAs(name string, out interface{}) error {
	if r.EventName != name {
		return fmt.Errorf("event %s is not %s", r.EventName, name)
	}
	if err := json.Unmarshal(r.Decoded, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", name, err)
	}
	return nil
}
