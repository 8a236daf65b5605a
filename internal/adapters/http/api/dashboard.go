// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"net/http"
)

// dashboardHandler renders the leaderboard as an HTML table.
type dashboardHandler struct {
	deps RankingsDependencies
}

func newDashboardHandler(deps RankingsDependencies) *dashboardHandler {
	return &dashboardHandler{deps: deps}
}

type dashboardRow struct {
	Title     string
	Platform  string
	Points    int
	WeekCount int
	Image     string
	Recent    bool
	Odd       bool
}

type dashboardView struct {
	Rows []dashboardRow
}

// HandleDashboard handles GET /dashboard requests.
func (h *dashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.dashboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	entries, err := h.deps.Rankings(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", wrap(op, err))
		return
	}

	view := dashboardView{Rows: make([]dashboardRow, 0, len(entries))}
	for i, e := range entries {
		row := dashboardRow{
			Title:     e.Title,
			Platform:  e.Platform,
			Points:    e.Points,
			WeekCount: e.WeekCount,
			Recent:    e.InRecentRanking,
			Odd:       i%2 == 1,
		}
		if e.Image != nil {
			row.Image = *e.Image
		}
		view.Rows = append(view.Rows, row)
	}

	// Render fully before writing so a template failure still yields a clean 500.
	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, view); err != nil {
		writeError(w, http.StatusInternalServerError, "render_failed", wrap(op, ErrRender))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
