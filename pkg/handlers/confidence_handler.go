package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/services"
)

// ConfidenceHandler serves on-demand confidence scores.
type ConfidenceHandler struct {
	confidenceService services.ConfidenceService
	logger            *zap.Logger
}

// NewConfidenceHandler creates a new confidence handler.
func NewConfidenceHandler(confidenceService services.ConfidenceService, logger *zap.Logger) *ConfidenceHandler {
	return &ConfidenceHandler{
		confidenceService: confidenceService,
		logger:            logger,
	}
}

// RegisterRoutes registers the confidence handler's routes on the given mux.
func (h *ConfidenceHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	mux.HandleFunc("GET /api/workspaces/{wid}/ideas/{iid}/confidence", tenantMiddleware(h.Get))
}

// Get handles GET /api/workspaces/{wid}/ideas/{iid}/confidence
func (h *ConfidenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID, ideaID, ok := ParseWorkspaceAndIdeaIDs(w, r, h.logger)
	if !ok {
		return
	}

	scored, err := h.confidenceService.ScoreIdea(r.Context(), workspaceID, ideaID)
	if err != nil {
		writeServiceError(w, err, "Failed to score idea", h.logger,
			zap.String("workspace_id", workspaceID.String()),
			zap.String("idea_id", ideaID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: scored}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
