package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/ndewijer/coinfolio-ledger/internal/reconcile"
	"github.com/ndewijer/coinfolio-ledger/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SyncStatusReply is the status reported to the caller of a wallet sync trigger.
const SyncStatusReply = "Synced"

// defaultDisplayCurrency is used when a portfolio is created without settings.
const defaultDisplayCurrency = "USD"

// SyncQueue accepts background wallet history jobs without blocking.
type SyncQueue interface {
	Enqueue(job WalletSyncJob) bool
}

// PortfolioService handles portfolio lifecycle, privacy views, wallet
// snapshots and ledger verification.
type PortfolioService struct {
	db              *sql.DB
	portfolioRepo   *repository.PortfolioRepository
	transactionRepo *repository.TransactionRepository
	wallet          WalletSource
	queue           SyncQueue
	engine          EffectEngine
	locks           *PortfolioLocker
	snapshots       *snapshotWriter
	logger          zerolog.Logger
}

// NewPortfolioService creates a new PortfolioService with the provided repository dependencies.
// queue may be nil, in which case no background history job is scheduled.
func NewPortfolioService(
	db *sql.DB,
	portfolioRepo *repository.PortfolioRepository,
	transactionRepo *repository.TransactionRepository,
	snapshotRepo *repository.SnapshotRepository,
	wallet WalletSource,
	queue SyncQueue,
	engine EffectEngine,
	locks *PortfolioLocker,
	logger zerolog.Logger,
) *PortfolioService {
	return &PortfolioService{
		db:              db,
		portfolioRepo:   portfolioRepo,
		transactionRepo: transactionRepo,
		wallet:          wallet,
		queue:           queue,
		engine:          engine,
		locks:           locks,
		snapshots: &snapshotWriter{
			db:              db,
			portfolioRepo:   portfolioRepo,
			transactionRepo: transactionRepo,
			snapshotRepo:    snapshotRepo,
			locks:           locks,
			now:             time.Now,
		},
		logger: logger.With().Str("service", "portfolio").Logger(),
	}
}

// CreatePortfolio stores a new portfolio owned by userID.
//
// Manual and exchange portfolios start empty. For wallet portfolios the
// balances are fetched first, so an unreachable provider or a bad address
// creates nothing; the history catch-up then runs in the background.
func (s *PortfolioService) CreatePortfolio(ctx context.Context, userID string, req request.CreatePortfolioRequest) (*model.Portfolio, error) {
	p := &model.Portfolio{
		OwnerID:       userID,
		Name:          req.Name,
		Description:   req.Description,
		Type:          req.Type,
		TrackerMode:   model.TrackerMode(req.TrackerMode),
		WalletAddress: strings.TrimSpace(req.WalletAddress),
		IsMain:        req.IsMain,
		Settings:      settingsFrom(req.Settings),
	}
	if p.TrackerMode == "" {
		p.TrackerMode = model.TrackerManual
	}
	if p.TrackerMode == model.TrackerWallet && p.WalletAddress == "" {
		return nil, fmt.Errorf("%w: wallet portfolios require a wallet address", apperrors.ErrInvalidInput)
	}
	if p.TrackerMode != model.TrackerWallet {
		p.WalletAddress = ""
	}

	var snapshot model.WalletSnapshot
	if p.IsWallet() {
		var err error
		snapshot, err = s.wallet.FetchSnapshot(ctx, p.WalletAddress)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		p.Assets = reconcile.Positions(snapshot)
		p.SyncStatus = model.SyncStatusPending
		p.LastSync = &now
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.portfolioRepo.WithTx(tx).InsertPortfolio(ctx, p); err != nil {
			return err
		}
		if !p.IsWallet() {
			return nil
		}
		return s.snapshots.snapshotRepo.WithTx(tx).InsertSnapshot(ctx, &model.BalanceSnapshot{
			PortfolioID: p.ID,
			Balance:     snapshotBalance(snapshot),
			Positions:   p.Assets,
			CreatedAt:   *p.LastSync,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("portfolio_id", p.ID).
		Str("tracker_mode", string(p.TrackerMode)).
		Int("positions", len(p.Assets)).
		Msg("portfolio created")

	if p.IsWallet() {
		s.enqueue(p.ID, snapshot.ConnectionID)
	}

	created, err := s.portfolioRepo.GetPortfolio(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetPortfolio returns a portfolio owned by userID.
func (s *PortfolioService) GetPortfolio(ctx context.Context, userID, portfolioID string) (model.Portfolio, error) {
	p, err := s.portfolioRepo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, err
	}
	if err := checkOwner(p, userID); err != nil {
		return model.Portfolio{}, err
	}
	return p, nil
}

// GetPublicPortfolio returns the view of a portfolio a viewer is allowed to see.
// Owners see everything. Other viewers only see public portfolios, never see the
// wallet address, and see zeroed amounts when the owner hides them.
func (s *PortfolioService) GetPublicPortfolio(ctx context.Context, viewerID, portfolioID string) (model.Portfolio, error) {
	p, err := s.portfolioRepo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, err
	}
	if p.OwnerID == viewerID {
		return p, nil
	}
	if !p.Settings.IsPublic {
		return model.Portfolio{}, apperrors.ErrPrivatePortfolio
	}

	p.WalletAddress = ""
	if !p.Settings.ShowAmounts {
		hidden := make([]model.Position, len(p.Assets))
		for i, pos := range p.Assets {
			pos.Amount = decimal.Zero
			pos.AverageBuyPrice = decimal.Zero
			hidden[i] = pos
		}
		p.Assets = hidden
	}
	return p, nil
}

// ListPortfolios returns every portfolio owned by userID.
func (s *PortfolioService) ListPortfolios(ctx context.Context, userID string) ([]model.Portfolio, error) {
	return s.portfolioRepo.GetPortfoliosByOwner(ctx, userID)
}

// UpdatePortfolio changes descriptive fields and privacy settings.
func (s *PortfolioService) UpdatePortfolio(ctx context.Context, userID, portfolioID string, req request.UpdatePortfolioRequest) (model.Portfolio, error) {
	p, err := s.GetPortfolio(ctx, userID, portfolioID)
	if err != nil {
		return model.Portfolio{}, err
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Type != nil {
		p.Type = *req.Type
	}
	if req.IsMain != nil {
		p.IsMain = *req.IsMain
	}
	if req.DisplayCurrency != nil {
		p.Settings.DisplayCurrency = strings.ToUpper(*req.DisplayCurrency)
	}
	if req.IsPublic != nil {
		p.Settings.IsPublic = *req.IsPublic
	}
	if req.ShowAmounts != nil {
		p.Settings.ShowAmounts = *req.ShowAmounts
	}

	if err := s.portfolioRepo.UpdatePortfolio(ctx, &p); err != nil {
		return model.Portfolio{}, err
	}
	return p, nil
}

// DeletePortfolio removes a portfolio with its positions, transactions and snapshots.
func (s *PortfolioService) DeletePortfolio(ctx context.Context, userID, portfolioID string) error {
	unlock := s.locks.Lock(portfolioID)
	defer unlock()

	if _, err := s.GetPortfolio(ctx, userID, portfolioID); err != nil {
		return err
	}
	if err := s.portfolioRepo.DeletePortfolio(ctx, portfolioID); err != nil {
		return err
	}

	s.logger.Info().Str("portfolio_id", portfolioID).Msg("portfolio deleted")
	return nil
}

// SyncWalletPortfolio replaces a wallet portfolio's positions with the current
// provider balances and schedules the history catch-up. It does not wait for
// the history job.
func (s *PortfolioService) SyncWalletPortfolio(ctx context.Context, userID, portfolioID string) (model.SyncResult, error) {
	p, err := s.GetPortfolio(ctx, userID, portfolioID)
	if err != nil {
		return model.SyncResult{}, err
	}
	if !p.IsWallet() {
		return model.SyncResult{}, apperrors.ErrNotWalletPortfolio
	}

	snapshot, err := s.wallet.FetchSnapshot(ctx, p.WalletAddress)
	if err != nil {
		return model.SyncResult{}, err
	}

	outcome, err := s.snapshots.apply(ctx, p.ID, snapshot, nil, model.SyncStatusPending)
	if err != nil {
		return model.SyncResult{}, err
	}

	s.enqueue(p.ID, snapshot.ConnectionID)

	return model.SyncResult{
		Status:    SyncStatusReply,
		Positions: len(outcome.Portfolio.Assets),
		SyncedAt:  outcome.SyncedAt,
	}, nil
}

// VerifyPortfolio replays the local transactions of a manual portfolio from an
// empty ledger and compares the result with the stored positions.
// A mismatch returns the result together with apperrors.ErrInconsistentState.
func (s *PortfolioService) VerifyPortfolio(ctx context.Context, userID, portfolioID string) (model.VerificationResult, error) {
	unlock := s.locks.Lock(portfolioID)
	defer unlock()

	p, txs, err := loadLedgerState(ctx, s.db, s.portfolioRepo, s.transactionRepo, portfolioID)
	if err != nil {
		return model.VerificationResult{}, err
	}
	if err := checkOwner(p, userID); err != nil {
		return model.VerificationResult{}, err
	}
	if p.TrackerMode == model.TrackerWallet {
		return model.VerificationResult{}, fmt.Errorf("%w: wallet portfolios are reconciled from balance snapshots", apperrors.ErrInvalidInput)
	}

	result := model.VerificationResult{
		PortfolioID:  portfolioID,
		Transactions: len(txs),
	}

	replayed, err := replayLocal(s.engine, txs)
	if err != nil {
		result.Mismatches = []string{err.Error()}
	} else {
		result.Mismatches = compareAmounts(p.Assets, replayed)
	}

	if len(result.Mismatches) > 0 {
		s.logger.Error().
			Str("portfolio_id", portfolioID).
			Strs("mismatches", result.Mismatches).
			Msg(apperrors.ErrInconsistentState.Error())
		return result, fmt.Errorf("%w: portfolio %s", apperrors.ErrInconsistentState, portfolioID)
	}

	result.Consistent = true
	return result, nil
}

func (s *PortfolioService) enqueue(portfolioID, connectionID string) {
	if s.queue == nil {
		return
	}
	s.queue.Enqueue(WalletSyncJob{PortfolioID: portfolioID, ConnectionID: connectionID})
}

func settingsFrom(req *request.PortfolioSettingsRequest) model.PortfolioSettings {
	settings := model.PortfolioSettings{
		DisplayCurrency: defaultDisplayCurrency,
		ShowAmounts:     true,
	}
	if req == nil {
		return settings
	}
	if req.DisplayCurrency != "" {
		settings.DisplayCurrency = strings.ToUpper(req.DisplayCurrency)
	}
	settings.IsPublic = req.IsPublic
	if req.ShowAmounts != nil {
		settings.ShowAmounts = *req.ShowAmounts
	}
	return settings
}
