package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"rangedb/pkg/dberrors"
	"rangedb/pkg/metrics"
	"rangedb/pkg/routing"
	"rangedb/pkg/sharding"
	"rangedb/pkg/types"
)

// Remote is a client for one partition node.
type Remote interface {
	Put(ctx context.Context, key, value types.Value) error
	Get(ctx context.Context, key string) (types.Value, bool, error)
	Delete(ctx context.Context, key string) error
	// Scan returns all entries whose effective key falls in [min, max).
	Scan(ctx context.Context, min, max types.Key) (map[string]types.Value, error)
}

// ClientFactory builds remote clients by partition address.
type ClientFactory func(target string) (Remote, error)

// Router targets partition nodes by key. It hashes raw keys into the effective
// key domain, resolves the owner through the provider's routing map and
// dispatches to the owning node. A partition answering "stale routing map"
// triggers one invalidate-and-retry round.
type Router struct {
	Collection string
	Provider   *Provider
	Hasher     sharding.KeyHasher
	NewClient  ClientFactory
	Metrics    metrics.Collector

	mu      sync.Mutex
	clients map[string]Remote
}

func (r *Router) collector() metrics.Collector {
	if r.Metrics == nil {
		return metrics.Nop{}
	}
	return r.Metrics
}

func (r *Router) client(target string) (Remote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[target]; ok {
		return c, nil
	}
	c, err := r.NewClient(target)
	if err != nil {
		return nil, fmt.Errorf("router: create client for %s: %w", target, err)
	}
	if r.clients == nil {
		r.clients = make(map[string]Remote)
	}
	r.clients[target] = c
	return c, nil
}

// Map exposes the current routing map, building it if needed.
func (r *Router) Map(ctx context.Context) (*routing.Map[Partition], error) {
	return r.Provider.Get(ctx, r.Collection)
}

// Route implements sharding.Router.
func (r *Router) Route(ctx context.Context, key string) (routing.KeyRange, string, error) {
	kr, p, _, err := r.owner(ctx, key)
	if err != nil {
		return routing.KeyRange{}, "", err
	}
	return kr, p.Addr, nil
}

func (r *Router) owner(ctx context.Context, key string) (routing.KeyRange, Partition, string, error) {
	m, err := r.Provider.Get(ctx, r.Collection)
	if err != nil {
		return routing.KeyRange{}, Partition{}, "", err
	}

	ek := r.Hasher.EffectiveKey(key)
	kr, ok := m.RangeByKey(ek)
	if !ok {
		// only the domain ceiling has no owner; hashed keys never reach it
		return routing.KeyRange{}, Partition{}, "", fmt.Errorf("key %q: effective key %q out of domain: %w", key, ek, dberrors.ErrInvalidArgument)
	}
	p, ok := m.InfoByID(kr.ID)
	if !ok {
		return routing.KeyRange{}, Partition{}, "", fmt.Errorf("range %s lost its partition info: %w", kr.ID, dberrors.ErrNotFound)
	}
	return kr, p, m.CollectionUniqueID(), nil
}

// do runs op against the owner of key, refreshing the routing map once when
// the partition reports it no longer owns the range.
func (r *Router) do(ctx context.Context, method, key string, op func(Remote) error) error {
	for attempt := 0; ; attempt++ {
		kr, p, uniqueID, err := r.owner(ctx, key)
		if err != nil {
			return err
		}

		cl, err := r.client(p.Addr)
		if err != nil {
			return err
		}

		r.collector().IncCounter("router_requests_total", map[string]string{"method": method}, 1)
		slog.Debug("route", "method", method, "key", key, "range", kr.ID, "target", p.Addr)

		err = op(cl)
		if err == nil || !errors.Is(err, dberrors.ErrStaleRoutingMap) || attempt > 0 {
			return err
		}

		r.collector().IncCounter("router_stale_map_total", nil, 1)
		slog.Info("partition reported stale routing map", "range", kr.ID, "uniqueId", uniqueID)
		r.Provider.Invalidate(r.Collection, uniqueID)
	}
}

func (r *Router) Put(ctx context.Context, key string, value types.Value) error {
	return r.do(ctx, "PUT", key, func(cl Remote) error {
		return cl.Put(ctx, key, value)
	})
}

func (r *Router) Get(ctx context.Context, key string) (types.Value, bool, error) {
	var (
		value types.Value
		found bool
	)
	err := r.do(ctx, "GET", key, func(cl Remote) error {
		var err error
		value, found, err = cl.Get(ctx, key)
		return err
	})
	return value, found, err
}

func (r *Router) Delete(ctx context.Context, key string) error {
	return r.do(ctx, "DELETE", key, func(cl Remote) error {
		return cl.Delete(ctx, key)
	})
}

// GetRange fans a span of the effective key domain out to every overlapping
// partition and merges the answers. Spans are expressed in effective keys:
// hashed placement keeps point lookups cheap, range reads are scatter-gather.
func (r *Router) GetRange(ctx context.Context, span routing.Span) (map[string]types.Value, error) {
	m, err := r.Provider.Get(ctx, r.Collection)
	if err != nil {
		return nil, err
	}

	ranges, err := m.OverlappingRanges(span)
	if err != nil {
		return nil, err
	}

	result := make(map[string]types.Value)
	for _, kr := range ranges {
		p, ok := m.InfoByID(kr.ID)
		if !ok {
			return nil, fmt.Errorf("range %s lost its partition info: %w", kr.ID, dberrors.ErrNotFound)
		}
		cl, err := r.client(p.Addr)
		if err != nil {
			return nil, err
		}

		// clamp the span to the slice this partition owns
		min, max := span.Min, span.Max
		if kr.MinInclusive > min {
			min = kr.MinInclusive
		}
		if kr.MaxExclusive < max {
			max = kr.MaxExclusive
		}

		part, err := cl.Scan(ctx, min, max)
		if err != nil {
			return nil, fmt.Errorf("scan range %s on %s: %w", kr.ID, p.Addr, err)
		}
		for k, v := range part {
			result[k] = v
		}
	}

	r.collector().IncCounter("router_range_queries_total", nil, 1)
	r.collector().ObserveHistogram("router_range_fanout", nil, float64(len(ranges)))
	return result, nil
}
