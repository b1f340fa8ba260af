package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/apperr"
	"github.com/datagata/gata/pkg/approval"
	"github.com/datagata/gata/pkg/cache"
	"github.com/datagata/gata/pkg/flags"
	"github.com/datagata/gata/pkg/models"
	"github.com/datagata/gata/pkg/provider"
	"github.com/datagata/gata/pkg/router"
	"github.com/datagata/gata/pkg/similarity"
)

// CacheHeader reports whether an execute-query answer came from the cache.
const CacheHeader = "X-Gata-Cache"

func (s *Server) handleAIQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, r, apperr.Validation("query", "is required"))
		return
	}
	fc := flags.ContextFromHeaders(r.Header)

	reuse := s.deps.Cache != nil && s.cfg.Cache.ReuseOnExecute
	if reuse {
		start := time.Now()
		match, err := s.deps.Cache.FindSimilar(r.Context(), req.Query, "", s.cfg.Cache.Threshold)
		if err != nil {
			s.log.Warn("cache lookup failed, executing", zap.Error(err))
		} else if match != nil {
			zero := 0.0
			w.Header().Set(CacheHeader, "hit")
			writeJSON(w, http.StatusOK, models.QueryResponse{
				Result:    match.Query,
				Provider:  providerForMode(match.QueryMode),
				LatencyMs: time.Since(start).Milliseconds(),
				CostUSD:   &zero,
			})
			return
		}
	}

	resp, err := s.deps.Router.Execute(r.Context(), router.Request{
		Query:      req.Query,
		TableNames: req.TableNames,
		Context:    fc,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if reuse {
		kind, _ := provider.ParseKind(resp.Provider)
		_, err := s.deps.Cache.Put(r.Context(), cache.Entry{
			Prompt:     req.Query,
			Query:      resp.Result,
			TableNames: req.TableNames,
			QueryMode:  kind.Mode(),
		})
		if err != nil {
			s.log.Warn("cache write-back failed", zap.Error(err))
		}
		w.Header().Set(CacheHeader, "miss")
	}
	writeJSON(w, http.StatusOK, resp)
}

func providerForMode(m models.QueryMode) string {
	if m == models.ModeBrowser {
		return string(provider.WebLLM)
	}
	return string(provider.MotherDuck)
}

type cachePutRequest struct {
	Prompt     string           `json:"prompt"`
	Query      string           `json:"query"`
	Results    models.Payload   `json:"results"`
	TableNames []string         `json:"tableNames"`
	QueryMode  models.QueryMode `json:"queryMode"`
	Approved   bool             `json:"approved"`
}

func (s *Server) cacheEnabled(w http.ResponseWriter) bool {
	if s.deps.Cache == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "cache_disabled", "query cache is disabled")
		return false
	}
	return true
}

func (s *Server) handleCachePut(w http.ResponseWriter, r *http.Request) {
	if !s.cacheEnabled(w) {
		return
	}
	var req cachePutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.deps.Cache.Put(r.Context(), cache.Entry{
		Prompt:     req.Prompt,
		Query:      req.Query,
		Results:    req.Results,
		TableNames: req.TableNames,
		QueryMode:  req.QueryMode,
		Approved:   req.Approved,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (s *Server) handleCacheLookup(w http.ResponseWriter, r *http.Request) {
	if !s.cacheEnabled(w) {
		return
	}
	q := r.URL.Query()
	prompt := q.Get("prompt")
	if prompt == "" {
		s.writeError(w, r, apperr.Validation("prompt", "parameter required"))
		return
	}
	mode := models.QueryMode(q.Get("queryMode"))
	if mode != "" && !mode.Valid() {
		s.writeError(w, r, apperr.Validation("queryMode", "must be webllm or motherduck"))
		return
	}
	threshold, err := parseThreshold(q.Get("threshold"), cache.DefaultThreshold)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	match, err := s.deps.Cache.FindSimilar(r.Context(), prompt, mode, threshold)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cached": match})
}

func parseThreshold(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v < 0 || v > 1 {
		return 0, apperr.Validation("threshold", "must be a number between 0 and 1")
	}
	return v, nil
}

type findSimilarRequest struct {
	Prompt    string   `json:"prompt"`
	TableName string   `json:"tableName"`
	Threshold *float64 `json:"threshold"`
	TopK      int      `json:"topK"`
}

func (s *Server) handleFindSimilar(w http.ResponseWriter, r *http.Request) {
	var req findSimilarRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	threshold := approval.DefaultThreshold
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			s.writeError(w, r, apperr.Validation("threshold", "must be a number between 0 and 1"))
			return
		}
		threshold = *req.Threshold
	}
	user := flags.ContextFromHeaders(r.Header).UserKey

	matches, err := s.deps.Approvals.FindSimilar(r.Context(), user, req.TableName, req.Prompt, threshold, req.TopK)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []similarity.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": len(matches) > 0, "matches": matches})
}

type approveRequest struct {
	Question      string         `json:"question"`
	TableName     string         `json:"tableName"`
	QueryResponse models.Payload `json:"queryResponse"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user := flags.ContextFromHeaders(r.Header).UserKey
	aq, err := s.deps.Approvals.Approve(r.Context(), user, req.TableName, req.Question, req.QueryResponse)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cacheKey": aq.CacheKey})
}

func (s *Server) handleListApproved(w http.ResponseWriter, r *http.Request) {
	user := flags.ContextFromHeaders(r.Header).UserKey
	queries, err := s.deps.Approvals.List(r.Context(), user, r.URL.Query().Get("table"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": queries})
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	window := s.cfg.Metrics.Window
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			s.writeError(w, r, apperr.Validation("window", "must be a positive duration such as 1h or 15m"))
			return
		}
		window = d
	}
	writeJSON(w, http.StatusOK, s.deps.Metrics.Summarize(window))
}

func (s *Server) handleMetricsRecord(w http.ResponseWriter, r *http.Request) {
	var o models.ProviderOutcome
	if err := decodeJSON(r, &o); err != nil {
		s.writeError(w, r, err)
		return
	}
	if o.Provider == "" {
		s.writeError(w, r, apperr.Validation("provider", "is required"))
		return
	}
	if o.LatencyMs < 0 || o.CostUSD < 0 {
		s.writeError(w, r, apperr.Validation("latency", "latency and cost must not be negative"))
		return
	}
	s.deps.Metrics.Record(o)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

func (s *Server) handleRegisterTable(w http.ResponseWriter, r *http.Request) {
	var meta models.TableMetadata
	if err := decodeJSON(r, &meta); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Catalog.Register(r.Context(), meta); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"registered": true})
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("tableName")
	if name == "" {
		s.writeError(w, r, apperr.Validation("tableName", "parameter required"))
		return
	}
	s.writeTable(w, r, name)
}

func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, fullName string) {
	meta, err := s.deps.Catalog.Get(r.Context(), fullName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if meta == nil {
		writeJSONError(w, http.StatusNotFound, "not_found", "table not found")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleGetTables(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("table"); name != "" {
		s.writeTable(w, r, name)
		return
	}
	tables, err := s.deps.Catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleCatalogStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Catalog.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"service":   ServiceName,
	})
}
