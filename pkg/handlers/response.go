package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/talentcore/talent-engine/pkg/apperrors"
)

// ApiResponse wraps data in the format expected by API clients.
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
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a service error onto an HTTP status via the
// apperrors sentinels, falling back to 500 with the given error code.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallbackCode string) {
	statusCode := http.StatusInternalServerError
	errorCode := fallbackCode

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		statusCode = http.StatusBadRequest
		errorCode = "validation_error"
	case errors.Is(err, apperrors.ErrNotFound):
		statusCode = http.StatusNotFound
		errorCode = "not_found"
	case errors.Is(err, apperrors.ErrConflict):
		statusCode = http.StatusConflict
		errorCode = "conflict"
	}

	if err := ErrorResponse(w, statusCode, errorCode, err.Error()); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
