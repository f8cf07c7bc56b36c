package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReviewerHeader carries the identity of the operator acting on a suggestion.
// The upstream gateway sets it after authenticating the caller.
const ReviewerHeader = "X-Reviewer"

// ParseWorkspaceID extracts and validates the workspace ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: wid
func ParseWorkspaceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "wid", "invalid_workspace_id", "Invalid workspace ID format", logger)
}

// ParseIdeaID extracts and validates the idea ID from the request path.
// Expects path parameter: iid
func ParseIdeaID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "iid", "invalid_idea_id", "Invalid idea ID format", logger)
}

// ParseSuggestionID extracts and validates the suggestion ID from the request path.
// Expects path parameter: sid
func ParseSuggestionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "sid", "invalid_suggestion_id", "Invalid suggestion ID format", logger)
}

// ParseWorkspaceAndIdeaIDs extracts and validates both workspace and idea IDs.
// Expects path parameters: wid, iid
func ParseWorkspaceAndIdeaIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	workspaceID, ok := ParseWorkspaceID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	ideaID, ok := ParseIdeaID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	return workspaceID, ideaID, true
}

// ParseWorkspaceAndSuggestionIDs extracts and validates both workspace and suggestion IDs.
// Expects path parameters: wid, sid
func ParseWorkspaceAndSuggestionIDs(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, uuid.UUID, bool) {
	workspaceID, ok := ParseWorkspaceID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	suggestionID, ok := ParseSuggestionID(w, r, logger)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	return workspaceID, suggestionID, true
}

func reviewerFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ReviewerHeader))
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
