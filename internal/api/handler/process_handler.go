package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-queue/internal/domain"
	"github.com/notifyhub/delivery-queue/internal/processor"
)

// ProcessHandler exposes the batch processor to external triggers
// (cron containers, operators). The background process worker and this
// endpoint drive the same cycle; the claim protocol makes concurrent
// invocations safe.
type ProcessHandler struct {
	proc   *processor.Processor
	logger *zap.Logger
}

func NewProcessHandler(proc *processor.Processor, logger *zap.Logger) *ProcessHandler {
	return &ProcessHandler{proc: proc, logger: logger}
}

type processRequest struct {
	Limit     int              `json:"limit,omitempty"`
	BatchSize int              `json:"batch_size,omitempty"`
	Channels  []domain.Channel `json:"channels,omitempty"`
	// Batched selects the bulk-reporting path. Default true.
	Batched *bool `json:"batched,omitempty"`
}

// Trigger handles POST /api/v1/process
func (h *ProcessHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	req := processRequest{Limit: 50, BatchSize: 50}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	for _, ch := range req.Channels {
		if !ch.IsValid() {
			mapError(w, domain.ErrInvalidChannel)
			return
		}
	}

	if req.Batched != nil && !*req.Batched {
		result, err := h.proc.ProcessQueue(r.Context(), req.Limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "processing cycle failed")
			return
		}
		respondJSON(w, http.StatusOK, result)
		return
	}

	results, err := h.proc.ProcessQueueWithBatches(r.Context(), req.BatchSize, req.Channels)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "processing cycle failed")
		return
	}
	respondJSON(w, http.StatusOK, results)
}
