package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/api/response"
	"github.com/ndewijer/coinfolio-ledger/internal/service"
	"github.com/ndewijer/coinfolio-ledger/internal/validation"
)

// AssetHandler serves the shared asset catalogue.
type AssetHandler struct {
	assetService *service.AssetService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assetService *service.AssetService) *AssetHandler {
	return &AssetHandler{
		assetService: assetService,
	}
}

// ListAssets handles GET /api/asset.
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := h.assetService.ListAssets(r.Context())
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, assets)
}

// GetAsset handles GET /api/asset/{uuid}.
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := h.assetService.GetAsset(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusOK, asset)
}

// CreateAsset registers an asset.
//
// Endpoint: POST /api/asset
// Response: 201 Created with Asset
// Error: 409 Conflict if the symbol already exists
func (h *AssetHandler) CreateAsset(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CreateAssetRequest](w, r)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	if err := validation.ValidateCreateAsset(req); err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	asset, err := h.assetService.CreateAsset(r.Context(), req)
	if err != nil {
		response.RespondServiceError(w, r, err)
		return
	}

	response.RespondJSON(w, r, http.StatusCreated, asset)
}
