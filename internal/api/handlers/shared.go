// Package handlers adapts HTTP requests to the service layer.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ndewijer/coinfolio-ledger/internal/api/middleware"
	"github.com/ndewijer/coinfolio-ledger/internal/api/response"
	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// parseJSON decodes the request body into T.
// Malformed bodies are reported as apperrors.ErrInvalidInput.
func parseJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, fmt.Errorf("%w: request body is empty", apperrors.ErrInvalidInput)
		}
		return req, fmt.Errorf("%w: malformed request body: %s", apperrors.ErrInvalidInput, err.Error())
	}
	return req, nil
}

// currentUser returns the authenticated user, answering 401 when there is none.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.RespondError(w, r, http.StatusUnauthorized, "UnauthorizedError", "authentication required")
		return "", false
	}
	return userID, true
}
