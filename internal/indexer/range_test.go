package indexer

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	tests := []struct {
		name      string
		from, to  uint64
		batchSize uint64
		want      []BlockRange
	}{
		{
			name: "even batches", from: 100, to: 105, batchSize: 2,
			want: []BlockRange{{From: 100, To: 101}, {From: 102, To: 103}, {From: 104, To: 105}},
		},
		{
			name: "short tail", from: 0, to: 4, batchSize: 2,
			want: []BlockRange{{From: 0, To: 1}, {From: 2, To: 3}, {From: 4, To: 4}},
		},
		{
			name: "single block", from: 5, to: 5, batchSize: 10,
			want: []BlockRange{{From: 5, To: 5}},
		},
	}
	for _, tc := range tests {
		got, err := SplitRange(tc.from, tc.to, tc.batchSize)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: ranges mismatch: %+v != %+v", tc.name, got, tc.want)
		}
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestBlockRangeHalve(t *testing.T) {
	left, right, ok := BlockRange{From: 10, To: 17}.Halve()
	if !ok || left != (BlockRange{From: 10, To: 13}) || right != (BlockRange{From: 14, To: 17}) {
		t.Fatalf("halve mismatch: %+v %+v %v", left, right, ok)
	}
	left, right, ok = BlockRange{From: 3, To: 4}.Halve()
	if !ok || left != (BlockRange{From: 3, To: 3}) || right != (BlockRange{From: 4, To: 4}) {
		t.Fatalf("halve of two blocks mismatch: %+v %+v", left, right)
	}
	if _, _, ok := (BlockRange{From: 5, To: 5}).Halve(); ok {
		t.Fatalf("single block cannot be halved")
	}
}
