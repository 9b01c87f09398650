package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func indexFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("index", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("from", 0, "")
	flags.StringSlice("address", nil, "")
	flags.StringSlice("pair", nil, "")
	flags.Uint64("batch-size", 2000, "")
	flags.Duration("retry-backoff", 500*time.Millisecond, "")
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func TestLoadIndexFlagsOverrideEnv(t *testing.T) {
	t.Setenv("AMM_RPC", "http://env:8545")
	t.Setenv("AMM_MAX_RETRIES", "9")

	cfg, err := LoadIndex("", indexFlags(t,
		"--from", "100",
		"--address", "0x1111111111111111111111111111111111111111, 0x2222222222222222222222222222222222222222",
		"--batch-size", "50",
	))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://env:8545" || cfg.MaxRetries != 9 {
		t.Fatalf("env values not applied: %+v", cfg)
	}
	if cfg.FromBlock != 100 || cfg.BatchSize != 50 {
		t.Fatalf("flag values not applied: %+v", cfg)
	}
	if len(cfg.Addresses) != 2 || cfg.Addresses[1] != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("addresses mismatch: %v", cfg.Addresses)
	}
	if !cfg.CheckpointEnabled || cfg.RetryBackoff != 500*time.Millisecond || !cfg.IncludeFactory {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amm.yaml")
	body := []byte(`
rpc: http://file:8545
factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
pair:
  - 0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa:0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb
topic0-map: "0xfeed=sync"
decimals:
  "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa": 6
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	index, err := LoadIndex(path, nil)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	if index.RPCURL != "http://file:8545" || len(index.Pairs) != 1 {
		t.Fatalf("index config mismatch: %+v", index)
	}

	decode, err := LoadDecode(path, nil)
	if err != nil {
		t.Fatalf("load decode: %v", err)
	}
	if !reflect.DeepEqual(decode.Topic0Map, map[string]string{"0xfeed": "sync"}) {
		t.Fatalf("topic0 map mismatch: %v", decode.Topic0Map)
	}

	agg, err := LoadAggregate(path, nil)
	if err != nil {
		t.Fatalf("load aggregate: %v", err)
	}
	if agg.Decimals["0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"] != "6" || agg.Window != "5m" {
		t.Fatalf("aggregate config mismatch: %+v", agg)
	}

	if _, err := LoadIndex(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadQuoteDefaults(t *testing.T) {
	cfg, err := LoadQuote("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Factory != DefaultFactory {
		t.Fatalf("factory default mismatch: %s", cfg.Factory)
	}
	if cfg.InitCodeHash != "0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f" {
		t.Fatalf("init code hash default mismatch: %s", cfg.InitCodeHash)
	}
}

func TestParseStringMap(t *testing.T) {
	got := parseStringMap("a=1, b = 2,broken,=3,c=")
	want := map[string]string{"a": "1", "b": "2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("map mismatch: %v", got)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "1700000000", want: 1700000000},
		{in: "2023-11-14T22:13:20Z", want: 1700000000},
		{in: "yesterday", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseTimestamp(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: unexpected error state: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %d want %d", tc.in, got, tc.want)
		}
	}
}
