package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/notifyhub/delivery-queue/internal/service"
)

// StatsHandler serves the read-only operational rollups. No mutation,
// safe to poll frequently from dashboards.
type StatsHandler struct {
	svc *service.QueueService
}

func NewStatsHandler(svc *service.QueueService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// Stats handles GET /api/v1/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to compute queue stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// BatchStats handles GET /api/v1/batches/{id}/stats
func (h *StatsHandler) BatchStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := h.svc.BatchStats(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
