// Demo builds a routing map from a static partitioning and prints routing
// decisions without needing ZooKeeper or any partition nodes.
package main

import (
	"fmt"
	"os"

	"rangedb/pkg/cluster"
	"rangedb/pkg/routing"
	"rangedb/pkg/sharding"
)

func main() {
	pairs := []routing.Pair[cluster.Partition]{
		{Range: routing.KeyRange{ID: "kr-0", MinInclusive: "", MaxExclusive: "40"}, Info: cluster.Partition{Node: "node1", Addr: "node1:8080"}},
		{Range: routing.KeyRange{ID: "kr-1", MinInclusive: "40", MaxExclusive: "80"}, Info: cluster.Partition{Node: "node2", Addr: "node2:8080"}},
		{Range: routing.KeyRange{ID: "kr-2", MinInclusive: "80", MaxExclusive: "C0"}, Info: cluster.Partition{Node: "node3", Addr: "node3:8080"}},
		{Range: routing.KeyRange{ID: "kr-3", MinInclusive: "C0", MaxExclusive: "FF"}, Info: cluster.Partition{Node: "node4", Addr: "node4:8080"}},
	}

	m, ok, err := routing.TryCreateCompleteMap(pairs, "demo-generation-1")
	if err != nil {
		fmt.Println("routing metadata corrupted:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("routing metadata incomplete")
		os.Exit(1)
	}

	fmt.Printf("routing map %q: %d ranges, head=%s tail=%s\n\n",
		m.CollectionUniqueID(), m.Len(), m.HeadPartition(), m.TailPartition())

	hasher := sharding.CRC32Hasher{}
	for _, key := range []string{"user:1", "user:2", "order-77", "invoice/2026/08", "session-abcdef"} {
		ek := hasher.EffectiveKey(key)
		kr, _ := m.RangeByKey(ek)
		p, _ := m.InfoByID(kr.ID)
		fmt.Printf("%-18s -> effective %s -> %s on %s\n", key, ek, kr.ID, p)
	}

	fmt.Println()
	span := routing.Span{Min: "30", Max: "90"}
	overlapping, err := m.OverlappingRanges(span)
	if err != nil {
		fmt.Println("overlap query:", err)
		os.Exit(1)
	}
	fmt.Printf("span %s touches:\n", span)
	for _, kr := range overlapping {
		p, _ := m.InfoByID(kr.ID)
		fmt.Printf("  %s on %s\n", kr, p)
	}
}
