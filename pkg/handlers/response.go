package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ideaflow-inc/ideaflow-engine/pkg/apperrors"
)

// ApiResponse is the standard envelope for successful API responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps service errors to HTTP responses. Precondition
// failures carry their own message; anything else is logged and reported as
// an internal error with the given fallback message.
func writeServiceError(w http.ResponseWriter, err error, fallback string, logger *zap.Logger, fields ...zap.Field) {
	var status int
	var code string
	switch {
	case errors.Is(err, apperrors.ErrInvalidKeepID):
		status, code = http.StatusBadRequest, "invalid_keep_id"
	case errors.Is(err, apperrors.ErrValidation):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrAlreadyProcessed):
		status, code = http.StatusConflict, "already_processed"
	case errors.Is(err, apperrors.ErrIdeaMerged):
		status, code = http.StatusConflict, "idea_merged"
	case errors.Is(err, apperrors.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	default:
		logger.Error(fallback, append(fields, zap.Error(err))...)
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", fallback); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := ErrorResponse(w, status, code, err.Error()); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
