package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"rangedb/pkg/cluster"
	"rangedb/pkg/dberrors"
	"rangedb/pkg/metrics"
	"rangedb/pkg/routing"
	"rangedb/pkg/types"
)

const (
	contentTypeJSON        = "application/json"
	defaultHTTPPort        = "8080"
	defaultShutdownTimeout = time.Second * 5
)

// iRouter is the gateway's view of the key router
type iRouter interface {
	Put(ctx context.Context, key string, value types.Value) error
	Get(ctx context.Context, key string) (types.Value, bool, error)
	Delete(ctx context.Context, key string) error
	GetRange(ctx context.Context, span routing.Span) (map[string]types.Value, error)
	Route(ctx context.Context, key string) (routing.KeyRange, string, error)
	Map(ctx context.Context) (*routing.Map[cluster.Partition], error)
}

// Server is the routing gateway: clients talk to it with plain KV requests and
// it forwards each one to the partition owning the key. The /routing endpoints
// expose the current map for debugging and operations.
type Server struct {
	router     iRouter
	counters   *metrics.Counters
	httpServer *http.Server
	URL        string
	addr       string

	readHeaderTimeout time.Duration
}

// NewServer creates a new gateway instance. A non-positive readHeaderTimeout
// falls back to one second.
func NewServer(router iRouter, counters *metrics.Counters, port string, readHeaderTimeout time.Duration) *Server {
	if port == "" {
		port = defaultHTTPPort
	}
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = time.Second
	}
	return &Server{
		router:            router,
		counters:          counters,
		URL:               "http://localhost:" + port,
		addr:              ":" + port,
		readHeaderTimeout: readHeaderTimeout,
	}
}

// Start starts the server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.createRouter(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

// Handler exposes the gateway routes, mainly for tests that mount the
// gateway on their own listener.
func (s *Server) Handler() http.Handler {
	return s.createRouter()
}

// Stop stops the server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// createRouter builds chi router
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Put("/api/string", s.handlePut)
	r.Get("/api/string", s.handleGet)
	r.Delete("/api", s.handleDelete)
	r.Get("/api/range", s.handleGetRange)

	r.Get("/routing/range", s.handleRoutingRange)
	r.Get("/routing/overlapping", s.handleRoutingOverlapping)
	r.Get("/routing/map", s.handleRoutingMap)

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dberrors.ErrInvalidArgument):
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
	case errors.Is(err, dberrors.ErrRoutingIncomplete):
		s.writeJSON(w, http.StatusServiceUnavailable, NewErrorResponse(err.Error()))
	default:
		s.writeJSON(w, http.StatusInternalServerError, NewErrorResponse(err.Error()))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if _, err := fmt.Fprintln(w, "# rangedb gateway metrics"); err != nil {
		slog.Warn("Failed to write metrics response", "error", err)
		return
	}
	if s.counters == nil {
		return
	}
	snap := s.counters.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s %v\n", name, snap[name])
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to parse form"))
		return
	}

	key := r.FormValue("key")
	value := r.FormValue("value")
	if key == "" || value == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key or value"))
		return
	}

	if err := s.router.Put(r.Context(), key, value); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}

	value, found, err := s.router.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse("Key not found"))
		return
	}
	s.writeJSON(w, http.StatusOK, NewValueResponse(value))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}

	if err := s.router.Delete(r.Context(), key); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

// handleGetRange scans a span of the effective key domain across partitions.
func (s *Server) handleGetRange(w http.ResponseWriter, r *http.Request) {
	span := spanFromQuery(r)

	entries, err := s.router.GetRange(r.Context(), span)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRoutingRange(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing key"))
		return
	}

	kr, target, err := s.router.Route(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, RouteResponse{Status: StatusSuccess, Range: kr, Target: target})
}

func (s *Server) handleRoutingOverlapping(w http.ResponseWriter, r *http.Request) {
	span := spanFromQuery(r)

	m, err := s.router.Map(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	ranges, err := m.OverlappingRanges(span)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, OverlappingResponse{Status: StatusSuccess, Ranges: ranges})
}

func (s *Server) handleRoutingMap(w http.ResponseWriter, r *http.Request) {
	m, err := s.router.Map(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	infos := m.OrderedPartitionInfo()
	partitions := make([]string, len(infos))
	for i, p := range infos {
		partitions[i] = p.String()
	}
	s.writeJSON(w, http.StatusOK, RoutingMapResponse{
		Status:             StatusSuccess,
		CollectionUniqueID: m.CollectionUniqueID(),
		Ranges:             m.OrderedRanges(),
		Partitions:         partitions,
	})
}

// spanFromQuery reads min/max query params; max defaults to the domain
// ceiling. An inverted span is rejected downstream as an invalid argument.
func spanFromQuery(r *http.Request) routing.Span {
	q := r.URL.Query()
	span := routing.Span{Min: q.Get("min"), Max: q.Get("max")}
	if span.Max == "" {
		span.Max = routing.MaximumExclusiveKey
	}
	return span
}
