package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/models"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/repositories"
	"github.com/ideaflow-inc/ideaflow-engine/pkg/services"
)

// TenantMiddleware is a function that wraps a handler with tenant context.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// SuggestionListResponse is the payload of GET /suggestions.
type SuggestionListResponse struct {
	Suggestions []*models.SuggestionWithIdeas `json:"suggestions"`
	Total       int                           `json:"total"`
}

// MergeRequest is the body of POST /suggestions/{sid}/merge.
type MergeRequest struct {
	KeepIdeaID uuid.UUID `json:"keep_idea_id"`
}

// SuggestionHandler exposes the operator review surface for duplicate suggestions.
type SuggestionHandler struct {
	suggestionService services.SuggestionService
	logger            *zap.Logger
}

// NewSuggestionHandler creates a new suggestion handler.
func NewSuggestionHandler(suggestionService services.SuggestionService, logger *zap.Logger) *SuggestionHandler {
	return &SuggestionHandler{
		suggestionService: suggestionService,
		logger:            logger,
	}
}

// RegisterRoutes registers the suggestion handler's routes on the given mux.
func (h *SuggestionHandler) RegisterRoutes(mux *http.ServeMux, tenantMiddleware TenantMiddleware) {
	base := "/api/workspaces/{wid}/suggestions"

	mux.HandleFunc("GET "+base, tenantMiddleware(h.List))
	mux.HandleFunc("POST "+base+"/{sid}/dismiss", tenantMiddleware(h.Dismiss))
	mux.HandleFunc("POST "+base+"/{sid}/merge", tenantMiddleware(h.Merge))
}

// List handles GET /api/workspaces/{wid}/suggestions?status=PENDING&limit=50&offset=0
func (h *SuggestionHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := ParseWorkspaceID(w, r, h.logger)
	if !ok {
		return
	}

	var filter repositories.SuggestionListFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status := models.SuggestionStatus(s)
		filter.Status = &status
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", name+" must be an integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		*dst = n
	}

	suggestions, err := h.suggestionService.List(r.Context(), workspaceID, filter)
	if err != nil {
		writeServiceError(w, err, "Failed to list suggestions", h.logger,
			zap.String("workspace_id", workspaceID.String()))
		return
	}
	if suggestions == nil {
		suggestions = []*models.SuggestionWithIdeas{}
	}

	response := SuggestionListResponse{Suggestions: suggestions, Total: len(suggestions)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Dismiss handles POST /api/workspaces/{wid}/suggestions/{sid}/dismiss
func (h *SuggestionHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	workspaceID, suggestionID, ok := ParseWorkspaceAndSuggestionIDs(w, r, h.logger)
	if !ok {
		return
	}

	suggestion, err := h.suggestionService.Dismiss(r.Context(), workspaceID, suggestionID, reviewerFrom(r))
	if err != nil {
		writeServiceError(w, err, "Failed to dismiss suggestion", h.logger,
			zap.String("workspace_id", workspaceID.String()),
			zap.String("suggestion_id", suggestionID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: suggestion}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Merge handles POST /api/workspaces/{wid}/suggestions/{sid}/merge
func (h *SuggestionHandler) Merge(w http.ResponseWriter, r *http.Request) {
	workspaceID, suggestionID, ok := ParseWorkspaceAndSuggestionIDs(w, r, h.logger)
	if !ok {
		return
	}

	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.suggestionService.Merge(r.Context(), workspaceID, suggestionID, req.KeepIdeaID, reviewerFrom(r))
	if err != nil {
		writeServiceError(w, err, "Failed to merge suggestion", h.logger,
			zap.String("workspace_id", workspaceID.String()),
			zap.String("suggestion_id", suggestionID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
