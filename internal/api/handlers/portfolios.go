package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/api/response"
	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/service"
	"github.com/ndewijer/coinfolio-ledger/internal/validation"
)

// PortfolioHandler handles portfolio-related HTTP requests
type PortfolioHandler struct {
	portfolioService *service.PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler
func NewPortfolioHandler(portfolioService *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
	}
}

// ListPortfolios returns the caller's portfolios.
//
// Endpoint: GET /api/portfolio
// Response: 200 OK with array of Portfolio
func (h *PortfolioHandler) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	portfolios, err := h.portfolioService.ListPortfolios(r.Context(), userID)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, portfolios)
}

// CreatePortfolio handles POST requests to create a portfolio.
// Wallet portfolios are seeded from the provider before the response is sent.
//
// Endpoint: POST /api/portfolio
// Request Body: CreatePortfolioRequest
// Response: 201 Created with Portfolio
// Error: 400 Bad Request if validation fails
// Error: 424 Failed Dependency if the wallet provider fails
func (h *PortfolioHandler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.CreatePortfolioRequest](w, r)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	if err := validation.ValidateCreatePortfolio(req); err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	portfolio, err := h.portfolioService.CreatePortfolio(r.Context(), userID, req)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusCreated, portfolio)
}

// GetPortfolio returns one of the caller's portfolios.
//
// Endpoint: GET /api/portfolio/{uuid}
// Error: 403 Forbidden if the caller does not own it
// Error: 404 Not Found if it does not exist
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	portfolio, err := h.portfolioService.GetPortfolio(r.Context(), userID, chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, portfolio)
}

// GetPublicPortfolio returns the view of a portfolio the caller may see.
//
// Endpoint: GET /api/portfolio/public/{uuid}
// Error: 403 Forbidden if the portfolio is private
func (h *PortfolioHandler) GetPublicPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	portfolio, err := h.portfolioService.GetPublicPortfolio(r.Context(), userID, chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, portfolio)
}

// UpdatePortfolio changes descriptive fields and settings.
//
// Endpoint: PATCH /api/portfolio/{uuid}
// Request Body: UpdatePortfolioRequest (all fields optional)
// Response: 200 OK with updated Portfolio
func (h *PortfolioHandler) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.UpdatePortfolioRequest](w, r)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	if err := validation.ValidateUpdatePortfolio(req); err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	portfolio, err := h.portfolioService.UpdatePortfolio(r.Context(), userID, chi.URLParam(r, "uuid"), req)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, portfolio)
}

// DeletePortfolio removes a portfolio with everything it owns.
//
// Endpoint: DELETE /api/portfolio/{uuid}
// Response: 204 No Content
func (h *PortfolioHandler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.portfolioService.DeletePortfolio(r.Context(), userID, chi.URLParam(r, "uuid")); err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusNoContent, nil)
}

// SyncPortfolio replaces a wallet portfolio's positions with current balances.
// The transaction history catch-up continues in the background.
//
// Endpoint: POST /api/portfolio/{uuid}/sync
// Response: 200 OK with SyncResult
// Error: 400 Bad Request if the portfolio is not a wallet portfolio
// Error: 424 Failed Dependency if the wallet provider fails
func (h *PortfolioHandler) SyncPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.portfolioService.SyncWalletPortfolio(r.Context(), userID, chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, result)
}

// VerifyPortfolio compares stored positions with a replay of local transactions.
// A detected mismatch is a successful verification and is answered with 200
// and consistent=false; the mismatch itself is logged by the service.
//
// Endpoint: GET /api/portfolio/{uuid}/verify
// Response: 200 OK with VerificationResult
func (h *PortfolioHandler) VerifyPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.portfolioService.VerifyPortfolio(r.Context(), userID, chi.URLParam(r, "uuid"))
	if err != nil && !errors.Is(err, apperrors.ErrInconsistentState) {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, result)
}
