package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	gateway "rangedb/internal/http"
	"rangedb/pkg/cluster"
	"rangedb/pkg/metrics"
	"rangedb/pkg/routing"
	"rangedb/pkg/rpc"
	"rangedb/pkg/sharding"
)

// partitionNode is an in-memory partition with the real HTTP API shape
type partitionNode struct {
	mu   sync.Mutex
	data map[string]string
	srv  *httptest.Server
}

func startPartition(t *testing.T) *partitionNode {
	t.Helper()
	p := &partitionNode{data: make(map[string]string)}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/put", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		_ = r.ParseForm()
		p.data[r.FormValue("key")] = r.FormValue("value")
	})
	mux.HandleFunc("/api/get", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		v, ok := p.data[r.URL.Query().Get("key")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"value": v})
	})
	mux.HandleFunc("/api/delete", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.data, r.URL.Query().Get("key"))
	})
	mux.HandleFunc("/api/scan", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		// the fakes store raw keys; answer everything and let the test
		// assert fan-out by size
		_ = json.NewEncoder(w).Encode(p.data)
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

type staticFetcher struct {
	pairs []routing.Pair[cluster.Partition]
}

func (f *staticFetcher) FetchRanges(ctx context.Context, collection string) ([]routing.Pair[cluster.Partition], string, error) {
	return f.pairs, "itest-1", nil
}

// the effective key domain below "0580000000" goes to a, the rest to b
func startCluster(t *testing.T) (*cluster.Router, *partitionNode, *partitionNode) {
	t.Helper()
	a, b := startPartition(t), startPartition(t)

	f := &staticFetcher{pairs: []routing.Pair[cluster.Partition]{
		{Range: routing.KeyRange{ID: "kr-0", MinInclusive: "", MaxExclusive: "0580000000"},
			Info: cluster.Partition{Node: "a", Addr: a.srv.URL}},
		{Range: routing.KeyRange{ID: "kr-1", MinInclusive: "0580000000", MaxExclusive: "FF"},
			Info: cluster.Partition{Node: "b", Addr: b.srv.URL}},
	}}

	router := &cluster.Router{
		Collection: "itest",
		Provider:   cluster.NewProvider(f, 1, 0),
		Hasher:     sharding.CRC32Hasher{},
		Metrics:    metrics.NewCounters(),
		NewClient: func(target string) (cluster.Remote, error) {
			return rpc.NewHTTPRemote(target, time.Second), nil
		},
	}
	return router, a, b
}

func TestGatewayEndToEnd(t *testing.T) {
	router, a, b := startCluster(t)

	gw := gateway.NewServer(router, metrics.NewCounters(), "0", 0)
	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()
	client := ts.Client()

	keys := []string{"user:1", "user:2", "user:3", "order-77", "order-78", "session-abc", "invoice/9"}
	for _, key := range keys {
		form := url.Values{"key": {key}, "value": {"v-" + key}}
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/string", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("put %s: status %d", key, resp.StatusCode)
		}
	}

	// every key must land on exactly the partition its effective key routes to
	hasher := sharding.CRC32Hasher{}
	for _, key := range keys {
		wantOnA := hasher.EffectiveKey(key) < "0580000000"
		a.mu.Lock()
		_, onA := a.data[key]
		a.mu.Unlock()
		b.mu.Lock()
		_, onB := b.data[key]
		b.mu.Unlock()
		if onA == onB {
			t.Fatalf("key %s stored on both or neither partition", key)
		}
		if onA != wantOnA {
			t.Fatalf("key %s landed on the wrong partition", key)
		}
	}

	// reads go through the same routing
	for _, key := range keys {
		resp, err := client.Get(ts.URL + "/api/string?key=" + url.QueryEscape(key))
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		var body gateway.Response
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s: %v", key, err)
		}
		resp.Body.Close()
		if body.Value != "v-"+key {
			t.Fatalf("get %s = %+v", key, body)
		}
	}
}

func TestGatewayRoutingDebugSurface(t *testing.T) {
	router, _, _ := startCluster(t)

	gw := gateway.NewServer(router, metrics.NewCounters(), "0", 0)
	ts := httptest.NewServer(gw.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/routing/map")
	if err != nil {
		t.Fatalf("routing map: %v", err)
	}
	var dump gateway.RoutingMapResponse
	if err := json.NewDecoder(resp.Body).Decode(&dump); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()

	if dump.CollectionUniqueID != "itest-1" || len(dump.Ranges) != 2 {
		t.Fatalf("dump = %+v", dump)
	}
	if dump.Ranges[0].ID != "kr-0" || dump.Ranges[1].ID != "kr-1" {
		t.Fatalf("ranges out of order: %+v", dump.Ranges)
	}
}

func TestRouterRecoversFromMisdirectedPartition(t *testing.T) {
	a := startPartition(t)

	// the node rejects the first write as misdirected, then accepts
	var mu sync.Mutex
	misdirects := 1
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		reject := misdirects > 0
		if reject {
			misdirects--
		}
		mu.Unlock()
		if reject {
			w.WriteHeader(http.StatusMisdirectedRequest)
			return
		}
		a.srv.Config.Handler.ServeHTTP(w, r)
	}))
	defer front.Close()

	f := &staticFetcher{pairs: []routing.Pair[cluster.Partition]{
		{Range: routing.FullRange("kr-0"), Info: cluster.Partition{Node: "a", Addr: front.URL}},
	}}
	router := &cluster.Router{
		Collection: "itest",
		Provider:   cluster.NewProvider(f, 1, 0),
		Hasher:     sharding.CRC32Hasher{},
		NewClient: func(target string) (cluster.Remote, error) {
			return rpc.NewHTTPRemote(target, time.Second), nil
		},
	}

	if err := router.Put(context.Background(), "user:1", "x"); err != nil {
		t.Fatalf("put after one misdirected answer must succeed, got %v", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.data["user:1"] != "x" {
		t.Fatalf("write did not reach the partition: %v", a.data)
	}
}

func TestRouterScatterGather(t *testing.T) {
	router, _, _ := startCluster(t)
	ctx := context.Background()

	if err := router.Put(ctx, "user:1", "x"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := router.Put(ctx, "order-77", "y"); err != nil {
		t.Fatalf("put: %v", err)
	}

	// a full-domain scan must visit both partitions and see both entries
	out, err := router.GetRange(ctx, routing.FullSpan())
	if err != nil {
		t.Fatalf("get range: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("scatter-gather returned %d entries: %v", len(out), out)
	}
}
