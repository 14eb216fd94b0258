package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

// HealthHandler serves liveness plus the Prometheus exposition.
type HealthHandler struct {
	handler http.Handler
}

// NewHealthHandler creates a health handler over m's registry.
func NewHealthHandler(m *metrics.Manager) *HealthHandler {
	var g prometheus.Gatherer = prometheus.NewRegistry()
	if m != nil {
		g = m.Registry()
	}
	return &HealthHandler{handler: promhttp.HandlerFor(g, promhttp.HandlerOpts{})}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}
