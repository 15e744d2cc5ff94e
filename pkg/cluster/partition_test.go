package cluster

import (
	"testing"

	"rangedb/pkg/routing"
)

func TestPairsFromDescriptors(t *testing.T) {
	descs := []RangeDescriptor{
		{ID: "kr-0", MinInclusive: "", MaxExclusive: "80", Node: "node1", Addr: "node1:8080"},
		{ID: "kr-1", MinInclusive: "80", MaxExclusive: "FF", Node: "node2", Addr: "node2:8080"},
	}

	pairs, err := PairsFromDescriptors(descs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs", len(pairs))
	}
	want := routing.KeyRange{ID: "kr-1", MinInclusive: "80", MaxExclusive: "FF"}
	if pairs[1].Range != want {
		t.Fatalf("range = %v, want %v", pairs[1].Range, want)
	}
	if pairs[1].Info != (Partition{Node: "node2", Addr: "node2:8080"}) {
		t.Fatalf("info = %v", pairs[1].Info)
	}
}

func TestPairsFromDescriptors_Malformed(t *testing.T) {
	for _, descs := range [][]RangeDescriptor{
		{{ID: "", MinInclusive: "", MaxExclusive: "FF", Addr: "node1:8080"}},
		{{ID: "kr-0", MinInclusive: "", MaxExclusive: "FF", Addr: ""}},
	} {
		if _, err := PairsFromDescriptors(descs); err == nil {
			t.Fatalf("descriptors %+v: expected error", descs)
		}
	}
}
