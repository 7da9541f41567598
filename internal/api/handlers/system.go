package handlers

import (
	"net/http"

	"github.com/ndewijer/coinfolio-ledger/internal/api/response"
	"github.com/ndewijer/coinfolio-ledger/internal/service"
	"github.com/rs/zerolog"
)

// SystemHandler handles system-related HTTP requests
type SystemHandler struct {
	systemService *service.SystemService
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(systemService *service.SystemService) *SystemHandler {
	return &SystemHandler{
		systemService: systemService,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// VersionResponse represents the version response.
type VersionResponse struct {
	AppVersion string `json:"app_version"`
}

// Health checks the health of the system and database connectivity.
// The database error is logged, not returned.
//
// Endpoint: GET /api/system/health
// Response: 200 OK, or 503 Service Unavailable when the database is unreachable
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.systemService.CheckHealth(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
		response.RespondJSON(w, r, http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Database: "disconnected",
		})
		return
	}

	response.RespondJSON(w, r, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Database: "connected",
	})
}

// Version returns the application version.
//
// Endpoint: GET /api/system/version
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	response.RespondJSON(w, r, http.StatusOK, VersionResponse{AppVersion: h.systemService.CheckVersion()})
}
