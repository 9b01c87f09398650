package model

import (
	"encoding/json"
	"testing"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		Sender:     "0x1111111111111111111111111111111111111111",
		To:         "0x2222222222222222222222222222222222222222",
		Amount0In:  "12345678901234567890",
		Amount1In:  "0",
		Amount0Out: "0",
		Amount1Out: "5192296858534827628530496329220095",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount0_in", "amount1_in", "amount0_out", "amount1_out"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestPoolMetaOmitsEmptyReserves(t *testing.T) {
	data, err := json.Marshal(PoolMeta{Token0: "0xa", Token1: "0xb"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["reserves"]; ok {
		t.Fatalf("reserves should be omitted when nil")
	}
	if _, ok := decoded["factory"]; ok {
		t.Fatalf("factory should be omitted when empty")
	}
}

func TestTypedEventRecordPayloads(t *testing.T) {
	event := TypedEvent{
		EventName: EventSync,
		Decoded:   SyncEventData{Reserve0: "1000", Reserve1: "4000"},
	}
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var record TypedEventRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	sync, err := record.Sync()
	if err != nil {
		t.Fatalf("sync payload: %v", err)
	}
	if sync.Reserve0 != "1000" || sync.Reserve1 != "4000" {
		t.Fatalf("sync payload mismatch: %+v", sync)
	}
	if _, err := record.Swap(); err == nil {
		t.Fatalf("expected error decoding a sync record as swap")
	}
}

func TestNewDecodeError(t *testing.T) {
	got := NewDecodeError(LogRecord{BlockNumber: 5, Topics: []string{"0xaa"}}, errString("bad data"))
	if got.BlockNumber != 5 || got.Topic0 != "0xaa" || got.Error != "bad data" {
		t.Fatalf("decode error mismatch: %+v", got)
	}
}

type errString string

func (e errString) Error() string {
	return string(e)
}

func TestTokenMetaScale(t *testing.T) {
	if got := (TokenMeta{Decimals: 6}).Scale().String(); got != "1000000" {
		t.Fatalf("scale mismatch: %s", got)
	}
}
