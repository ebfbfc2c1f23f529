// Package api provides standardized helpers for HTTP JSON responses.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	appErrors "commerce-backend/pkg/errors"
)

// ErrorResponse is the JSON shape of every error the API returns.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Success writes data as JSON with the given status. A nil data writes
// only the status.
func Success(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Error writes a JSON error body with the given status.
func Error(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// RespondError maps a typed application error to its HTTP status.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case appErrors.IsValidation(err):
		Error(w, http.StatusBadRequest, err.Error())
	case appErrors.IsNotFound(err):
		Error(w, http.StatusNotFound, err.Error())
	case appErrors.IsUnavailable(err):
		Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
