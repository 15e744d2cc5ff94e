package cluster

import (
	"fmt"

	"rangedb/pkg/routing"
	"rangedb/pkg/types"
)

// Partition identifies a physical partition endpoint. It is comparable, so it
// serves as the routing map's partition info; routing never looks inside it.
type Partition struct {
	Node types.NodeID
	Addr string
}

func (p Partition) String() string {
	return fmt.Sprintf("%s@%s", p.Node, p.Addr)
}

// RangeDescriptor is the wire form of one partition's range assignment, stored
// as a JSON znode under the collection's ranges path.
type RangeDescriptor struct {
	ID           string `json:"id"`
	MinInclusive string `json:"minInclusive"`
	MaxExclusive string `json:"maxExclusive"`
	Node         string `json:"node"`
	Addr         string `json:"addr"`
}

// PairsFromDescriptors converts fetched descriptors into routing constructor
// input. Descriptors with an empty id or address are a malformed metadata
// response and rejected as a whole.
func PairsFromDescriptors(descs []RangeDescriptor) ([]routing.Pair[Partition], error) {
	pairs := make([]routing.Pair[Partition], 0, len(descs))
	for _, d := range descs {
		if d.ID == "" || d.Addr == "" {
			return nil, fmt.Errorf("range descriptor %+v: missing id or addr", d)
		}
		pairs = append(pairs, routing.Pair[Partition]{
			Range: routing.KeyRange{
				ID:           d.ID,
				MinInclusive: d.MinInclusive,
				MaxExclusive: d.MaxExclusive,
			},
			Info: Partition{Node: types.NodeID(d.Node), Addr: d.Addr},
		})
	}
	return pairs, nil
}
