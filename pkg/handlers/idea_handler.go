package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/services"
)

// CreateIdeaRequest is the body of POST /ideas.
type CreateIdeaRequest struct {
	Title            string  `json:"title"`
	Description      *string `json:"description,omitempty"`
	ProblemStatement *string `json:"problem_statement,omitempty"`
	FrequencyTag     *string `json:"frequency_tag,omitempty"`
	ImpactTag        *string `json:"impact_tag,omitempty"`
}

// UpdateIdeaContentRequest is the body of PUT /ideas/{iid}.
type UpdateIdeaContentRequest struct {
	Title            string  `json:"title"`
	Description      *string `json:"description,omitempty"`
	ProblemStatement *string `json:"problem_statement,omitempty"`
}

// UpdateRoadmapRequest is the body of PUT /ideas/{iid}/roadmap.
type UpdateRoadmapRequest struct {
	RoadmapStatus models.RoadmapStatus `json:"roadmap_status"`
}

// UpdateRoadmapResponse reports the cascade triggered by a roadmap change.
type UpdateRoadmapResponse struct {
	RoadmapStatus        models.RoadmapStatus `json:"roadmap_status"`
	DismissedSuggestions int                  `json:"dismissed_suggestions"`
}

// VoteRequest is the body of POST /ideas/{iid}/votes.
type VoteRequest struct {
	ContributorID    uuid.UUID `json:"contributor_id"`
	ContributorEmail *string   `json:"contributor_email,omitempty"`
}

// VoteResponse reports whether the vote was new.
type VoteResponse struct {
	Added bool `json:"added"`
}

// IdeaHandler handles the idea writes that feed duplicate detection.
type IdeaHandler struct {
	ideaService services.IdeaService
	logger      *zap.Logger
}

// NewIdeaHandler creates a new idea handler.
func NewIdeaHandler(ideaService services.IdeaService, logger *zap.Logger) *IdeaHandler {
	return &IdeaHandler{
		ideaService: ideaService,
		logger:      logger,
	}
}

// RegisterRoutes registers the idea handler's routes on the given mux.
func (h *IdeaHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/ideas"

	mux.HandleFunc("POST "+base, tenantMiddleware(h.Create))
	mux.HandleFunc("PUT "+base+"/{iid}", tenantMiddleware(h.UpdateContent))
	mux.HandleFunc("PUT "+base+"/{iid}/roadmap", tenantMiddleware(h.UpdateRoadmap))
	mux.HandleFunc("POST "+base+"/{iid}/votes", tenantMiddleware(h.Vote))
}

// Create handles POST /api/workspaces/{wid}/ideas
func (h *IdeaHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateIdeaRequest
	if !h.decode(w, r, &req) {
		return
	}

	idea := &models.Idea{
		WorkspaceID:      workspaceID,
		Title:            req.Title,
		Description:      req.Description,
		ProblemStatement: req.ProblemStatement,
		FrequencyTag:     req.FrequencyTag,
		ImpactTag:        req.ImpactTag,
	}
	if err := h.ideaService.Create(r.Context(), idea); err != nil {
		writeServiceError(w, err, "Failed to create idea", h.logger,
			zap.String("workspace_id", workspaceID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: idea}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateContent handles PUT /api/workspaces/{wid}/ideas/{iid}
func (h *IdeaHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	workspaceID, ideaID, ok := ParseWorkspaceAndIdeaIDs(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateIdeaContentRequest
	if !h.decode(w, r, &req) {
		return
	}

	idea, err := h.ideaService.UpdateContent(r.Context(), workspaceID, ideaID, req.Title, req.Description, req.ProblemStatement)
	if err != nil {
		writeServiceError(w, err, "Failed to update idea", h.logger,
			zap.String("workspace_id", workspaceID.String()),
			zap.String("idea_id", ideaID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: idea}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateRoadmap handles PUT /api/workspaces/{wid}/ideas/{iid}/roadmap
func (h *IdeaHandler) UpdateRoadmap(w http.ResponseWriter, r *http.Request) {
	workspaceID, ideaID, ok := ParseWorkspaceAndIdeaIDs(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateRoadmapRequest
	if !h.decode(w, r, &req) {
		return
	}

	dismissed, err := h.ideaService.UpdateRoadmapStatus(r.Context(), workspaceID, ideaID, req.RoadmapStatus, reviewerFrom(r))
	if err != nil {
		writeServiceError(w, err, "Failed to update roadmap status", h.logger,
			zap.String("workspace_id", workspaceID.String()),
			zap.String("idea_id", ideaID.String()))
		return
	}

	response := UpdateRoadmapResponse{RoadmapStatus: req.RoadmapStatus, DismissedSuggestions: dismissed}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Vote handles POST /api/workspaces/{wid}/ideas/{iid}/votes
func (h *IdeaHandler) Vote(w http.ResponseWriter, r *http.Request) {
	workspaceID, ideaID, ok := ParseWorkspaceAndIdeaIDs(w, r, h.logger)
	if !ok {
		return
	}

	var req VoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	added, err := h.ideaService.Vote(r.Context(), &models.Vote{
		WorkspaceID:      workspaceID,
		IdeaID:           ideaID,
		ContributorID:    req.ContributorID,
		ContributorEmail: req.ContributorEmail,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to record vote", h.logger,
			zap.String("workspace_id", workspaceID.String()),
			zap.String("idea_id", ideaID.String()))
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: VoteResponse{Added: added}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *IdeaHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
