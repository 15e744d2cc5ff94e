package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhangyunhao116/skipmap"

	"rangedb/pkg/clock"
	"rangedb/pkg/dberrors"
	"rangedb/pkg/routing"
)

// Fetcher supplies raw partition metadata for a collection. ZKMetadata is the
// production implementation.
type Fetcher interface {
	FetchRanges(ctx context.Context, collection string) ([]routing.Pair[Partition], string, error)
}

type mapSlot = atomic.Pointer[routing.Map[Partition]]

// Provider caches one immutable routing map per collection and rebuilds it on
// demand. Readers load the current map lock-free; a rebuild swaps in a brand
// new map and never touches the old one, so maps handed out earlier stay valid
// snapshots.
type Provider struct {
	fetcher    Fetcher
	retries    int
	retryDelay time.Duration

	slots      *skipmap.FuncMap[string, *mapSlot]
	mu         sync.Mutex // guards slot creation only
	generation *clock.AtomicClock
}

func NewProvider(f Fetcher, retries int, retryDelay time.Duration) *Provider {
	if retries < 1 {
		retries = 1
	}
	return &Provider{
		fetcher:    f,
		retries:    retries,
		retryDelay: retryDelay,
		slots:      skipmap.NewFunc[string, *mapSlot](func(a, b string) bool { return a < b }),
		generation: clock.NewAtomic(0),
	}
}

func (p *Provider) slot(collection string) *mapSlot {
	if s, ok := p.slots.Load(collection); ok {
		return s
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.slots.Load(collection); ok {
		return s
	}
	s := new(mapSlot)
	p.slots.Store(collection, s)
	return s
}

// Get returns the cached routing map for a collection, building one first if
// needed. An incomplete metadata snapshot is retried up to the configured
// number of attempts; overlapping metadata fails immediately with
// ErrRangesOverlap.
func (p *Provider) Get(ctx context.Context, collection string) (*routing.Map[Partition], error) {
	s := p.slot(collection)
	if m := s.Load(); m != nil {
		return m, nil
	}
	return p.rebuild(ctx, collection, s)
}

// Refresh unconditionally refetches the collection metadata and swaps the
// cached map.
func (p *Provider) Refresh(ctx context.Context, collection string) error {
	_, err := p.rebuild(ctx, collection, p.slot(collection))
	return err
}

// Invalidate drops the cached map only when it still carries the stale unique
// id, so a newer map installed by a concurrent refresh survives.
func (p *Provider) Invalidate(collection, staleUniqueID string) {
	s := p.slot(collection)
	for {
		cur := s.Load()
		if cur == nil || cur.CollectionUniqueID() != staleUniqueID {
			return
		}
		if s.CompareAndSwap(cur, nil) {
			slog.Info("routing map invalidated", "collection", collection, "uniqueId", staleUniqueID)
			return
		}
	}
}

// Generation counts successful rebuilds across all collections.
func (p *Provider) Generation() uint64 {
	return p.generation.Val()
}

func (p *Provider) rebuild(ctx context.Context, collection string, s *mapSlot) (*routing.Map[Partition], error) {
	var lastUniqueID string
	for attempt := 1; attempt <= p.retries; attempt++ {
		pairs, uniqueID, err := p.fetcher.FetchRanges(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("fetch ranges for %s: %w", collection, err)
		}
		lastUniqueID = uniqueID

		m, ok, err := routing.TryCreateCompleteMap(pairs, uniqueID)
		if err != nil {
			// overlap: the metadata source is corrupted, retrying cannot help
			return nil, fmt.Errorf("collection %s: %w", collection, err)
		}
		if ok {
			s.Store(m)
			gen := p.generation.Next()
			slog.Info("routing map rebuilt",
				"collection", collection,
				"uniqueId", uniqueID,
				"ranges", m.Len(),
				"generation", gen)
			return m, nil
		}

		slog.Warn("routing metadata incomplete, retrying",
			"collection", collection,
			"attempt", attempt,
			"ranges", len(pairs))

		if attempt == p.retries {
			break
		}
		select {
		case <-time.After(p.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("collection %s (uniqueId %s) after %d attempts: %w",
		collection, lastUniqueID, p.retries, dberrors.ErrRoutingIncomplete)
}
