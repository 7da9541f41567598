package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/api"
	"github.com/ndewijer/coinfolio-ledger/internal/coinstats"
	"github.com/ndewijer/coinfolio-ledger/internal/config"
	"github.com/ndewijer/coinfolio-ledger/internal/database"
	"github.com/ndewijer/coinfolio-ledger/internal/ledger"
	"github.com/ndewijer/coinfolio-ledger/internal/logging"
	"github.com/ndewijer/coinfolio-ledger/internal/reconcile"
	"github.com/ndewijer/coinfolio-ledger/internal/repository"
	"github.com/ndewijer/coinfolio-ledger/internal/scheduler"
	"github.com/ndewijer/coinfolio-ledger/internal/secret"
	"github.com/ndewijer/coinfolio-ledger/internal/service"
	"github.com/ndewijer/coinfolio-ledger/internal/version"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("info", false)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
	logger.Info().Str("version", version.Version).Msg("starting coinfolio ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection; pending migrations are applied on open.
	db, err := database.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	logger.Info().Str("path", cfg.Database.Path).Msg("connected to database")

	// Wallet addresses are encrypted at rest. Several comma separated keys
	// allow rotation: the first one encrypts.
	box, err := secret.NewBox(strings.Split(cfg.Security.FernetKey, ",")...)
	if err != nil {
		logger.Fatal().Err(err).Msg("FERNET_KEY is missing or invalid")
	}

	// Create repositories
	assetRepo := repository.NewAssetRepository(db)
	portfolioRepo := repository.NewPortfolioRepository(db, box)
	transactionRepo := repository.NewTransactionRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	// Wallet provider
	walletClient := coinstats.NewWalletClient(coinstats.Options{
		BaseURL:           cfg.Wallet.BaseURL,
		APIKey:            cfg.Wallet.APIKey,
		RequestsPerSecond: cfg.Wallet.RequestsPerSecond,
		Burst:             cfg.Wallet.Burst,
	})

	// Create services
	engine := ledger.NewEngine()
	locks := service.NewPortfolioLocker()

	assetService := service.NewAssetService(assetRepo)
	symbols := reconcile.NewSymbolCache(assetService, cfg.Cache.SymbolTTL, cfg.Cache.CleanupInterval)
	wallet := reconcile.NewAdapter(walletClient, symbols, logger)

	syncRunner := service.NewWalletSyncRunner(
		db,
		wallet,
		portfolioRepo,
		transactionRepo,
		snapshotRepo,
		locks,
		service.WalletSyncOptions{
			Workers:          cfg.Wallet.Workers,
			QueueSize:        cfg.Wallet.QueueSize,
			MaxAttempts:      cfg.Wallet.MaxAttempts,
			SyncDelay:        cfg.Wallet.SyncDelay,
			PollInterval:     cfg.Wallet.SyncPollInterval,
			MaxWait:          cfg.Wallet.SyncMaxWait,
			TransactionLimit: cfg.Wallet.TransactionLimit,
		},
		logger,
	)
	syncRunner.Start()

	services := api.Services{
		System: service.NewSystemService(db),
		Portfolios: service.NewPortfolioService(
			db,
			portfolioRepo,
			transactionRepo,
			snapshotRepo,
			wallet,
			syncRunner,
			engine,
			locks,
			logger,
		),
		Transaction: service.NewTransactionService(
			db,
			transactionRepo,
			portfolioRepo,
			assetRepo,
			engine,
			locks,
			logger,
		),
		Assets: assetService,
	}

	// Periodic wallet re-sync
	jobs := scheduler.New(syncRunner, logger)
	if err := jobs.ScheduleWalletResync(cfg.Wallet.ResyncSchedule); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule wallet resync")
	}
	jobs.Start()

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(services, cfg, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down server")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server failed")
	}

	// Graceful shutdown with timeout: stop accepting requests first, then
	// drain scheduled and queued wallet work.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("scheduler did not stop in time")
	}
	if err := syncRunner.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("wallet sync runner did not drain in time")
	}

	logger.Info().Msg("server exited")
}
