package simulate

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario("testdata/basic.yaml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if sc.ChainID != 31337 || sc.StartTime != 1_700_000_000 {
		t.Fatalf("header mismatch: %+v", sc)
	}
	if len(sc.Tokens) != 2 || sc.Tokens[0].Symbol != "TKA" || sc.Tokens[0].Balances["bob"] != "1000" {
		t.Fatalf("tokens mismatch: %+v", sc.Tokens)
	}
	if len(sc.Steps) != 6 || sc.Steps[2].Op != OpSwapExactIn || len(sc.Steps[2].Path) != 2 {
		t.Fatalf("steps mismatch: %+v", sc.Steps)
	}
	if sc.Steps[4].Deadline != -1 || sc.Steps[3].ExpectError != "slippage" {
		t.Fatalf("step fields mismatch: %+v %+v", sc.Steps[3], sc.Steps[4])
	}
}

func TestLoadScenarioMissing(t *testing.T) {
	if _, err := LoadScenario("testdata/missing.yaml"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "0"},
		{in: "1500", want: "1500"},
		{in: "15e2", want: "1500"},
		{in: "1.5e3", want: "1500"},
		{in: "1e18", want: "1000000000000000000"},
		{in: "1.50e1", want: "15"},
		{in: "1.5", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "1e-2", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1e80", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error, got %s", tc.in, got.ToBig())
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got.ToBig().String() != tc.want {
			t.Fatalf("%q: got %s want %s", tc.in, got.ToBig(), tc.want)
		}
	}
}

func TestAccountAddress(t *testing.T) {
	sc := Scenario{Accounts: map[string]string{"alice": "0x00000000000000000000000000000000000a11ce"}}

	alice, err := sc.accountAddress("Alice")
	if err != nil || alice != common.HexToAddress("0x00000000000000000000000000000000000a11ce") {
		t.Fatalf("configured account mismatch: %s %v", alice.Hex(), err)
	}
	bob1, err := sc.accountAddress("bob")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	bob2, _ := sc.accountAddress(" BOB ")
	if bob1 != bob2 || bob1 == (common.Address{}) {
		t.Fatalf("derived accounts must be stable: %s %s", bob1.Hex(), bob2.Hex())
	}
	if _, err := sc.accountAddress(""); err == nil {
		t.Fatalf("expected error for empty name")
	}
}
