package analytics

import (
	"context"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/department-portal/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/department-portal/pkg/response"
)

// History lists stored stats snapshots. *SnapshotStore implements it.
type History interface {
	List(ctx context.Context, limit int) ([]AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	history    History
}

// NewHandler serves live stats from aggregator. history may be nil when no
// database is configured.
func NewHandler(aggregator *Aggregator, history History) *Handler {
	return &Handler{aggregator: aggregator, history: history}
}

// Stats serves GET /api/analytics/searches.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, h.aggregator.Stats())
}

// History serves GET /api/analytics/searches/history?limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		response.Error(w, r, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "Snapshot history is disabled"))
		return
	}
	limit := 24
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			response.Error(w, r, apperrors.Invalid("limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	snapshots, err := h.history.List(r.Context(), limit)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"snapshots": snapshots})
}
