// Package httpapi serves persisted screening runs over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"stratlab/internal/observability"
	"stratlab/internal/screening"
	"stratlab/internal/store"
	"stratlab/internal/strategy/builtins"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// ResultsServer serves the results HTTP API.
type ResultsServer struct {
	results store.ResultStore
	metrics *observability.Metrics
	log     *slog.Logger
}

// NewResultsServer creates a ResultsServer. A nil metrics omits /metrics.
func NewResultsServer(results store.ResultStore, m *observability.Metrics, log *slog.Logger) *ResultsServer {
	if log == nil {
		log = slog.Default()
	}
	return &ResultsServer{results: results, metrics: m, log: log.With("component", "httpapi")}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *ResultsServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}/results", s.handleResults)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *ResultsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseLimit extracts the "limit" query param, clamped to [1, maxLimit].
func parseLimit(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, maxLimit), true
}

func (s *ResultsServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	runs, err := s.results.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}
	out := make([]RunJSON, len(runs))
	for i, run := range runs {
		out[i] = toRunJSON(run)
	}
	writeJSON(w, out)
}

func (s *ResultsServer) handleResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	records, err := s.results.TopResults(r.Context(), id, limit)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log.Error("loading results", "run", id, "error", err)
		writeError(w, http.StatusInternalServerError, "loading results failed")
		return
	}
	resp := RunResultsResponse{RunID: id, Results: make([]ResultJSON, len(records))}
	for i, rec := range records {
		resp.Results[i] = toResultJSON(rec)
	}
	writeJSON(w, resp)
}

type catalogEntry struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Lookback int    `json:"lookback"`
}

func (s *ResultsServer) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	var strategies []catalogEntry
	for _, st := range builtins.Defaults().All() {
		strategies = append(strategies, catalogEntry{Type: st.Name(), ID: st.ID(), Lookback: st.Lookback()})
	}
	writeJSON(w, map[string]any{
		"strategies": strategies,
		"metrics":    screening.Metrics(),
	})
}
