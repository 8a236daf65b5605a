// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/topten/internal/adapters/source"
)

// Refresher re-reads the backends and publishes a new snapshot.
type Refresher interface {
	Refresh(ctx context.Context) (Snapshot, error)
}

// RefreshHandler handles manual refresh requests.
type RefreshHandler struct {
	deps Refresher
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps Refresher) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

type refreshResponse struct {
	Snapshot       string    `json:"snapshot"`
	FetchedAt      time.Time `json:"fetchedAt"`
	MostRecentDate string    `json:"mostRecentDate,omitempty"`
	Entries        int       `json:"entries"`
}

// HandleRefresh handles POST /refresh. A failed fetch leaves the served
// snapshot unchanged and answers 502.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	snap, err := h.deps.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, source.ErrFetch) {
			writeError(w, http.StatusBadGateway, "fetch_failed", wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Snapshot:       snap.ID,
		FetchedAt:      snap.FetchedAt,
		MostRecentDate: snap.MostRecentDate,
		Entries:        len(snap.Rankings),
	})
}
