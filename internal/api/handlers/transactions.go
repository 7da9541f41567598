package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/api/response"
	"github.com/ndewijer/coinfolio-ledger/internal/service"
	"github.com/ndewijer/coinfolio-ledger/internal/validation"
)

// TransactionHandler handles HTTP requests for transaction endpoints.
// It parses and validates requests and delegates ledger work to the TransactionService.
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler with the provided service dependency.
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// PortfolioTransactions returns a portfolio's transactions, newest first.
//
// Endpoint: GET /api/portfolio/{uuid}/transactions
// Response: 200 OK with array of Transaction
// Error: 403 Forbidden if the caller does not own the portfolio
func (h *TransactionHandler) PortfolioTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	transactions, err := h.transactionService.ListTransactions(r.Context(), userID, chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, transactions)
}

// GetTransaction handles GET requests to retrieve a single transaction by ID.
//
// Endpoint: GET /api/transaction/{uuid}
// Response: 200 OK with Transaction
// Error: 404 Not Found if transaction not found
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	transaction, err := h.transactionService.GetTransaction(r.Context(), userID, chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, transaction)
}

// CreateTransaction records a transaction and applies it to the portfolio's positions.
//
// Endpoint: POST /api/transaction
// Request Body: CreateTransactionRequest (portfolioId, assetId, type, amount, price, date)
// Response: 201 Created with Transaction
// Error: 400 Bad Request if validation fails or the position is too small for a sell
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.CreateTransactionRequest](w, r)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	if err := validation.ValidateCreateTransaction(req); err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	transaction, err := h.transactionService.CreateTransaction(r.Context(), userID, req)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusCreated, transaction)
}

// UpdateTransaction replaces the effect of a local transaction with its edited version.
//
// Endpoint: PATCH /api/transaction/{uuid}
// Request Body: UpdateTransactionRequest (all fields optional)
// Response: 200 OK with updated Transaction
// Error: 400 Bad Request if the transaction came from a wallet feed
func (h *TransactionHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	req, err := parseJSON[request.UpdateTransactionRequest](w, r)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	if err := validation.ValidateUpdateTransaction(req); err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	transaction, err := h.transactionService.UpdateTransaction(r.Context(), userID, chi.URLParam(r, "uuid"), req)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, transaction)
}

// DeleteTransaction removes a local transaction and reverts its effect.
//
// Endpoint: DELETE /api/transaction/{uuid}
// Response: 204 No Content
func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.transactionService.DeleteTransaction(r.Context(), userID, chi.URLParam(r, "uuid")); err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusNoContent, nil)
}
