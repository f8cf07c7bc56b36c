package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/services"
)

// DedupHandler exposes an operator trigger for the batch pass.
type DedupHandler struct {
	scheduler services.DedupScheduler
	logger    *zap.Logger
}

// NewDedupHandler creates a new dedup handler.
func NewDedupHandler(scheduler services.DedupScheduler, logger *zap.Logger) *DedupHandler {
	return &DedupHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// RegisterRoutes registers the dedup handler's routes on the given mux.
// The pass walks every workspace, so it takes no tenant middleware.
func (h *DedupHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/admin/dedup/run", h.Run)
}

// Run handles POST /api/admin/dedup/run. It blocks until the pass finishes.
// A pass already running on another replica yields 409 with skipped=true.
func (h *DedupHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.scheduler.RunOnce(r.Context())
	if err != nil {
		h.logger.Error("Manual duplicate detection pass failed", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "dedup_run_failed", "Duplicate detection pass failed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	status := http.StatusOK
	if result.Skipped {
		status = http.StatusConflict
	}
	if err := WriteJSON(w, status, ApiResponse{Success: !result.Skipped, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
