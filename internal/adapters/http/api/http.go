// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/types"
	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service package.
type Dependencies interface {
	StatsProvider

	// Answer resolves and executes one query.
	Answer(ctx context.Context, req types.QueryRequest) (types.Result, error)
}

// Server wires HTTP routes for the query API.
type Server struct {
	metrics       *metrics.Manager
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	queryHandler  *QueryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, m *metrics.Manager) *Server {
	return &Server{
		metrics:       m,
		healthHandler: NewHealthHandler(m),
		statsHandler:  NewStatsHandler(deps),
		queryHandler:  NewQueryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.metrics, s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.metrics, s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/query", MetricsMiddleware(s.metrics, s.queryHandler.HandleQuery, "query"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
