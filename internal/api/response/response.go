// Package response provides utilities for sending consistent HTTP responses.
// It includes helpers for JSON responses and standardized error responses.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/rs/zerolog"
)

// ErrorResponse represents a structured error response returned by the API.
// Error carries the classification label and Details the human readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// If data is nil, only the status code is sent (useful for 204 No Content).
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// RespondError sends a structured error response with the given status code.
//
// Example:
//
//	response.RespondError(w, r, http.StatusBadRequest, "ValidationError", err.Error())
func RespondError(w http.ResponseWriter, r *http.Request, status int, classification string, details any) {
	RespondJSON(w, r, status, ErrorResponse{
		Error:   classification,
		Details: details,
	})
}

// RespondServiceError maps err to its status code and classification.
// Server side failures are logged and answered with a generic message so no
// internal detail leaks to the client.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	details := err.Error()
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		details = apperrors.InternalMessage
	}
	RespondError(w, r, status, apperrors.Classification(err), details)
}
