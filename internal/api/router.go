// Package api assembles the HTTP surface of the ledger.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ndewijer/coinfolio-ledger/internal/api/handlers"
	custommiddleware "github.com/ndewijer/coinfolio-ledger/internal/api/middleware"
	"github.com/ndewijer/coinfolio-ledger/internal/config"
	"github.com/ndewijer/coinfolio-ledger/internal/service"
)

// Services groups the dependencies the handlers delegate to.
type Services struct {
	System      *service.SystemService
	Portfolios  *service.PortfolioService
	Transaction *service.TransactionService
	Assets      *service.AssetService
}

// NewRouter creates and configures the HTTP router
func NewRouter(services Services, cfg *config.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(logger))
	r.Use(middleware.Recoverer)

	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	systemHandler := handlers.NewSystemHandler(services.System)
	portfolioHandler := handlers.NewPortfolioHandler(services.Portfolios)
	transactionHandler := handlers.NewTransactionHandler(services.Transaction)
	assetHandler := handlers.NewAssetHandler(services.Assets)

	r.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		// Everything below requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.Authenticate(cfg.Auth.JWTSecret))

			r.Route("/portfolio", func(r chi.Router) {
				r.Get("/", portfolioHandler.ListPortfolios)
				r.Post("/", portfolioHandler.CreatePortfolio)

				r.With(custommiddleware.ValidateUUIDMiddleware).
					Get("/public/{uuid}", portfolioHandler.GetPublicPortfolio)

				r.Route("/{uuid}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateUUIDMiddleware)
					r.Get("/", portfolioHandler.GetPortfolio)
					r.Patch("/", portfolioHandler.UpdatePortfolio)
					r.Delete("/", portfolioHandler.DeletePortfolio)
					r.Post("/sync", portfolioHandler.SyncPortfolio)
					r.Get("/verify", portfolioHandler.VerifyPortfolio)
					r.Get("/transactions", transactionHandler.PortfolioTransactions)
				})
			})

			r.Route("/transaction", func(r chi.Router) {
				r.Post("/", transactionHandler.CreateTransaction)

				r.Route("/{uuid}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateUUIDMiddleware)
					r.Get("/", transactionHandler.GetTransaction)
					r.Patch("/", transactionHandler.UpdateTransaction)
					r.Delete("/", transactionHandler.DeleteTransaction)
				})
			})

			r.Route("/asset", func(r chi.Router) {
				r.Get("/", assetHandler.ListAssets)
				r.Post("/", assetHandler.CreateAsset)
				r.With(custommiddleware.ValidateUUIDMiddleware).Get("/{uuid}", assetHandler.GetAsset)
			})
		})
	})

	return r
}
