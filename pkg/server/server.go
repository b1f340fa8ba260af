// Package server exposes the query core as a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/apperr"
	"github.com/datagata/gata/pkg/approval"
	"github.com/datagata/gata/pkg/cache"
	"github.com/datagata/gata/pkg/catalog"
	"github.com/datagata/gata/pkg/config"
	"github.com/datagata/gata/pkg/metrics"
	"github.com/datagata/gata/pkg/router"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "gata"

const maxBodyBytes = 1 << 20

// Deps are the components the server binds to routes. Cache may be nil when
// caching is disabled; Gatherer may be nil to leave /metrics unmounted.
type Deps struct {
	Router    *router.Router
	Cache     *cache.Cache
	Approvals *approval.Store
	Catalog   *catalog.Catalog
	Metrics   *metrics.Aggregator
	Gatherer  prometheus.Gatherer
	Logger    *zap.Logger
}

// Server is the gata HTTP API.
type Server struct {
	cfg  *config.Config
	deps Deps
	log  *zap.Logger
	mux  *http.ServeMux
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, deps: d, log: log, mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /api/ai-query", s.handleAIQuery)
	s.mux.HandleFunc("POST /api/query/cache", s.handleCachePut)
	s.mux.HandleFunc("GET /api/query/cache", s.handleCacheLookup)
	s.mux.HandleFunc("POST /api/query/find-similar", s.handleFindSimilar)
	s.mux.HandleFunc("POST /api/analytics/approve", s.handleApprove)
	s.mux.HandleFunc("GET /api/analytics/approve", s.handleListApproved)
	s.mux.HandleFunc("GET /api/ai-metrics", s.handleMetricsSummary)
	s.mux.HandleFunc("POST /api/ai-metrics", s.handleMetricsRecord)
	s.mux.HandleFunc("POST /api/metadata/register-table", s.handleRegisterTable)
	s.mux.HandleFunc("GET /api/metadata/get-table", s.handleGetTable)
	s.mux.HandleFunc("GET /api/metadata/get-tables", s.handleGetTables)
	s.mux.HandleFunc("GET /api/metadata/stats", s.handleCatalogStats)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if d.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(sw, r)
	s.log.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", sw.status),
		zap.Duration("duration", time.Since(start)),
	)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gata listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("body", "invalid JSON")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":%q,"code":%d}}`, message, kind, code)
}

// writeError maps err onto a status and a message safe for callers. The
// cause of a server-side failure only goes to the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", apperr.Kind(err)),
			zap.Error(err),
		)
	}
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}
	writeJSONError(w, code, apperr.Kind(err), apperr.PublicMessage(err))
}
