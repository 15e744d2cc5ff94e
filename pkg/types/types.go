package types

// Key is an effective partition key: an uppercase-hex string compared
// lexicographically. All real keys sort inside the domain bounded by the
// routing sentinels.
type Key = string

// Value is the value payload type alias used for clarity.
type Value = string

// NodeID identifies a node in a cluster.
type NodeID string
