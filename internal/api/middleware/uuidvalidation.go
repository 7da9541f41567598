// Package middleware provides HTTP middleware for authentication, access logging and request validation.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/coinfolio-ledger/internal/api/response"
	"github.com/ndewijer/coinfolio-ledger/internal/validation"
)

// ValidateUUIDMiddleware validates that the uuid URL parameter is present and is a valid UUID.
// Returns 400 Bad Request if the id is missing or invalid.
//
// Example usage in router:
//
//	r.Route("/{uuid}", func(r chi.Router) {
//	    r.Use(middleware.ValidateUUIDMiddleware)
//	    r.Get("/", handler.GetPortfolio)
//	    r.Patch("/", handler.UpdatePortfolio)
//	})
func ValidateUUIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "uuid")

		if id == "" {
			response.RespondError(w, r, http.StatusBadRequest, "ValidationError", "valid UUID is required")
			return
		}

		if err := validation.ValidateUUID(id); err != nil {
			response.RespondError(w, r, http.StatusBadRequest, "ValidationError", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
