package sharding

import (
	"context"
	"fmt"
	"hash/crc32"

	"rangedb/pkg/routing"
	"rangedb/pkg/types"
)

// effectivePrefix keeps every effective key strictly below the routing domain
// ceiling "FF".
const effectivePrefix = "05"

// KeyHasher deterministically maps raw partition keys into the effective key
// domain.
type KeyHasher interface {
	EffectiveKey(key string) types.Key
}

// Router decides where requests for a key should go.
type Router interface {
	// Route returns the owning key range and the address to contact for it.
	Route(ctx context.Context, key string) (routing.KeyRange, string, error)
}

// CRC32Hasher hashes raw keys to fixed-width uppercase-hex effective keys.
// Equal keys always land in the same range regardless of which client computed
// the mapping.
type CRC32Hasher struct{}

func (CRC32Hasher) EffectiveKey(key string) types.Key {
	return fmt.Sprintf("%s%08X", effectivePrefix, crc32.ChecksumIEEE([]byte(key)))
}
