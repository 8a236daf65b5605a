// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
)

// ChartDependencies defines the interface for chart reads.
type ChartDependencies interface {
	Chart(ctx context.Context) (Chart, error)
}

// ChartHandler serves the rank-over-time series.
type ChartHandler struct {
	deps ChartDependencies
}

// NewChartHandler creates a new chart handler.
func NewChartHandler(deps ChartDependencies) *ChartHandler {
	return &ChartHandler{deps: deps}
}

// HandleGetChart handles GET /chart requests.
func (h *ChartHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	chart, err := h.deps.Chart(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrap("api.get_chart", err))
		return
	}
	writeJSON(w, http.StatusOK, chart)
}
